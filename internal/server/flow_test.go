// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carriergate/slicepurchase/pkg/capability"
	"github.com/carriergate/slicepurchase/pkg/diag"
	"github.com/carriergate/slicepurchase/pkg/flowchannel"
	"github.com/carriergate/slicepurchase/pkg/slice"
)

type recordedResponse struct {
	slot int
	cap  capability.Capability
	resp flowchannel.Response
}

type flowHarness struct {
	server    *FlowServer
	ts        *httptest.Server
	client    *websocket.Conn
	capture   *diag.Capture
	mu        sync.Mutex
	responses []recordedResponse
	snapshots []*slice.Snapshot
}

func newFlowHarness(t *testing.T) *flowHarness {
	t.Helper()

	h := &flowHarness{capture: diag.NewCapture()}
	h.server = NewFlowServer(FlowServerConfig{
		OnResponse: func(slot int, cap capability.Capability, resp flowchannel.Response) {
			h.mu.Lock()
			h.responses = append(h.responses, recordedResponse{slot: slot, cap: cap, resp: resp})
			h.mu.Unlock()
		},
		OnSliceConfig: func(snapshot *slice.Snapshot) {
			h.mu.Lock()
			h.snapshots = append(h.snapshots, snapshot)
			h.mu.Unlock()
		},
		Diag: h.capture,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/flow", h.server.handleFlowSocket)
	mux.HandleFunc("/v1/slice-config", h.server.handleSliceConfig)
	h.ts = httptest.NewServer(mux)
	t.Cleanup(h.ts.Close)

	wsURL := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/v1/flow"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial flow socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	h.client = conn

	// Wait for the server to register the connection.
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.server.mu.Lock()
		connected := h.server.conn != nil
		h.server.mu.Unlock()
		if connected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server never registered the client connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return h
}

func (h *flowHarness) waitForResponses(t *testing.T, n int) []recordedResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.mu.Lock()
		got := len(h.responses)
		h.mu.Unlock()
		if got >= n {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d responses, got %d", n, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]recordedResponse, len(h.responses))
	copy(out, h.responses)
	return out
}

func (h *flowHarness) waitForTag(t *testing.T, tag string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if h.capture.CountTag(tag) > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for diagnostic %q", tag)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func openTestFlow(t *testing.T, h *flowHarness, slot int, cap capability.Capability) (map[flowchannel.ResponseType]string, openFrame) {
	t.Helper()

	tokens := flowchannel.NewTokens()
	err := h.server.Open(context.Background(), flowchannel.OpenRequest{
		Slot:           slot,
		SubscriptionID: 1,
		Capability:     cap,
		PurchaseURL:    "https://carrier.example.com/buy",
		CarrierName:    "TestCarrier",
		Tokens:         tokens,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var frame openFrame
	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := h.client.ReadJSON(&frame); err != nil {
		t.Fatalf("failed to read open frame: %v", err)
	}
	return tokens, frame
}

func TestFlowServerOpenDeliversFrame(t *testing.T) {
	h := newFlowHarness(t)

	tokens, frame := openTestFlow(t, h, 0, capability.LowLatency)

	if frame.Type != "open" {
		t.Errorf("expected frame type open, got %q", frame.Type)
	}
	if frame.Capability != "low_latency" {
		t.Errorf("expected capability low_latency, got %q", frame.Capability)
	}
	if frame.PurchaseURL != "https://carrier.example.com/buy" {
		t.Errorf("unexpected purchase URL %q", frame.PurchaseURL)
	}
	if len(frame.Tokens) != len(flowchannel.ResponseTypes) {
		t.Errorf("expected %d tokens, got %d", len(flowchannel.ResponseTypes), len(frame.Tokens))
	}
	for rt, token := range tokens {
		if frame.Tokens[string(rt)] != token {
			t.Errorf("token for %s not carried on the frame", rt)
		}
	}
}

func TestFlowServerOpenWithoutConnection(t *testing.T) {
	s := NewFlowServer(FlowServerConfig{
		OnResponse:    func(int, capability.Capability, flowchannel.Response) {},
		OnSliceConfig: func(*slice.Snapshot) {},
	})
	err := s.Open(context.Background(), flowchannel.OpenRequest{
		Slot:       0,
		Capability: capability.LowLatency,
		Tokens:     flowchannel.NewTokens(),
	})
	if err == nil {
		t.Fatal("expected an error when no purchase application is connected")
	}
}

func TestFlowServerRoutesResponseByToken(t *testing.T) {
	h := newFlowHarness(t)

	tokens, _ := openTestFlow(t, h, 0, capability.LowLatency)

	err := h.client.WriteJSON(responseFrame{
		Token:      tokens[flowchannel.ResponseCanceled],
		Slot:       0,
		Capability: "low_latency",
	})
	if err != nil {
		t.Fatalf("failed to write response frame: %v", err)
	}

	responses := h.waitForResponses(t, 1)
	if responses[0].resp.Type != flowchannel.ResponseCanceled {
		t.Errorf("expected canceled response, got %s", responses[0].resp.Type)
	}
	if responses[0].slot != 0 || responses[0].cap != capability.LowLatency {
		t.Errorf("response routed to wrong flow: slot %d cap %s", responses[0].slot, responses[0].cap)
	}
}

func TestFlowServerDiscardsUnknownToken(t *testing.T) {
	h := newFlowHarness(t)
	openTestFlow(t, h, 0, capability.LowLatency)

	if err := h.client.WriteJSON(responseFrame{Token: "not-a-real-token", Slot: 0, Capability: "low_latency"}); err != nil {
		t.Fatalf("failed to write response frame: %v", err)
	}

	h.waitForTag(t, "unknown_flow_token")
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.responses) != 0 {
		t.Errorf("unknown token must not produce a response, got %d", len(h.responses))
	}
}

func TestFlowServerDiscardsMismatchedFrame(t *testing.T) {
	h := newFlowHarness(t)
	tokens, _ := openTestFlow(t, h, 0, capability.LowLatency)

	// Valid token but the frame claims a different slot.
	err := h.client.WriteJSON(responseFrame{
		Token:      tokens[flowchannel.ResponseSuccess],
		Slot:       3,
		Capability: "low_latency",
	})
	if err != nil {
		t.Fatalf("failed to write response frame: %v", err)
	}

	h.waitForTag(t, "mismatched_flow_frame")
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.responses) != 0 {
		t.Errorf("mismatched frame must not produce a response, got %d", len(h.responses))
	}
}

func TestFlowServerCloseDropsTokens(t *testing.T) {
	h := newFlowHarness(t)
	tokens, _ := openTestFlow(t, h, 0, capability.LowLatency)

	if err := h.server.Close(0, capability.LowLatency); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := h.client.WriteJSON(responseFrame{
		Token:      tokens[flowchannel.ResponseSuccess],
		Slot:       0,
		Capability: "low_latency",
	}); err != nil {
		t.Fatalf("failed to write response frame: %v", err)
	}

	h.waitForTag(t, "unknown_flow_token")
}

func TestFlowServerNotifyTimeout(t *testing.T) {
	h := newFlowHarness(t)
	openTestFlow(t, h, 0, capability.HighBandwidth)

	if err := h.server.NotifyTimeout(0, capability.HighBandwidth); err != nil {
		t.Fatalf("NotifyTimeout failed: %v", err)
	}

	var frame timeoutFrame
	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := h.client.ReadJSON(&frame); err != nil {
		t.Fatalf("failed to read timeout frame: %v", err)
	}
	if frame.Type != "response_timeout" || frame.Capability != "high_bandwidth" {
		t.Errorf("unexpected timeout frame: %+v", frame)
	}
}

func TestFlowServerSliceConfigEndpoint(t *testing.T) {
	h := newFlowHarness(t)

	body := []byte(`{"slices":[{"capability":"low_latency","state":"active","sliceId":"s-1"}]}`)
	resp, err := http.Post(h.ts.URL+"/v1/slice-config", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("slice-config post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(h.snapshots))
	}
	if !h.snapshots[0].IsActive(capability.LowLatency) {
		t.Error("snapshot should report low_latency active")
	}
	if h.snapshots[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt should have been defaulted")
	}

	resp, err = http.Post(h.ts.URL+"/v1/slice-config", "application/json", bytes.NewReader([]byte("{bad")))
	if err != nil {
		t.Fatalf("slice-config post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed snapshot, got %d", resp.StatusCode)
	}
}
