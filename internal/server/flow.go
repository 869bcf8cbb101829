// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/pkg/capability"
	"github.com/carriergate/slicepurchase/pkg/diag"
	"github.com/carriergate/slicepurchase/pkg/flowchannel"
	"github.com/carriergate/slicepurchase/pkg/slice"
)

// FlowServerConfig wires the flow server to the orchestrator layer.
type FlowServerConfig struct {
	Port int
	// OnResponse delivers a validated purchase flow outcome.
	OnResponse func(slot int, cap capability.Capability, resp flowchannel.Response)
	// OnSliceConfig delivers a slice snapshot posted by the network agent.
	OnSliceConfig func(snapshot *slice.Snapshot)
	// Health reports backing-store availability for the /healthz probe.
	// Optional; when nil the probe only checks that the server is up.
	Health func(ctx context.Context) error
	Diag   diag.Reporter
}

// pendingToken maps one minted correlation token back to the flow leg it
// belongs to.
type pendingToken struct {
	slot         int
	cap          capability.Capability
	responseType flowchannel.ResponseType
}

// FlowServer hosts the websocket endpoint the external purchase application
// connects to, and the HTTP endpoint the network agent posts slice snapshots
// to. It implements flowchannel.Channel: opening a flow pushes an "open"
// frame carrying one correlation token per possible outcome; inbound frames
// are matched by token and validated against the slot and capability the
// flow was opened for before being forwarded.
type FlowServer struct {
	cfg      FlowServerConfig
	server   *http.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	tokens map[string]pendingToken
}

// NewFlowServer creates a flow server instance.
func NewFlowServer(cfg FlowServerConfig) *FlowServer {
	if cfg.Diag == nil {
		cfg.Diag = diag.NewLogReporter()
	}
	return &FlowServer{
		cfg:    cfg,
		tokens: make(map[string]pendingToken),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Setup configures the HTTP routes.
func (s *FlowServer) Setup() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/flow", s.handleFlowSocket)
	mux.HandleFunc("/v1/slice-config", s.handleSliceConfig)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: mux,
	}
	return nil
}

// Start begins serving on the configured port.
func (s *FlowServer) Start(ctx context.Context) error {
	go func() {
		logrus.Infof("purchase flow server listening on port %d", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("purchase flow server failed: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *FlowServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down purchase flow server...")

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Info("purchase flow server stopped")
	return nil
}

// ---- wire frames ----

type openFrame struct {
	Type           string            `json:"type"`
	Slot           int               `json:"slot"`
	SubscriptionID int               `json:"subscriptionId"`
	Capability     string            `json:"capability"`
	PurchaseURL    string            `json:"purchaseUrl"`
	CarrierName    string            `json:"carrierName"`
	UserData       string            `json:"userData,omitempty"`
	ContentType    string            `json:"contentType,omitempty"`
	Tokens         map[string]string `json:"tokens"`
}

type timeoutFrame struct {
	Type       string `json:"type"`
	Slot       int    `json:"slot"`
	Capability string `json:"capability"`
}

type responseFrame struct {
	Token          string `json:"token"`
	Slot           int    `json:"slot"`
	Capability     string `json:"capability"`
	FailureCode    int    `json:"failureCode,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`
	DurationMillis int64  `json:"durationMillis,omitempty"`
}

// ---- flowchannel.Channel implementation ----

// Open implements flowchannel.Channel.
func (s *FlowServer) Open(_ context.Context, req flowchannel.OpenRequest) error {
	frame := openFrame{
		Type:           "open",
		Slot:           req.Slot,
		SubscriptionID: req.SubscriptionID,
		Capability:     req.Capability.String(),
		PurchaseURL:    req.PurchaseURL,
		CarrierName:    req.CarrierName,
		UserData:       req.UserData,
		ContentType:    req.ContentType,
		Tokens:         make(map[string]string, len(req.Tokens)),
	}
	for rt, token := range req.Tokens {
		frame.Tokens[string(rt)] = token
	}

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return fmt.Errorf("purchase application not connected")
	}
	for rt, token := range req.Tokens {
		s.tokens[token] = pendingToken{slot: req.Slot, cap: req.Capability, responseType: rt}
	}
	err := s.writeLocked(frame)
	s.mu.Unlock()

	if err != nil {
		s.dropTokens(req.Slot, req.Capability)
		return fmt.Errorf("failed to send open frame: %w", err)
	}
	return nil
}

// NotifyTimeout implements flowchannel.Channel.
func (s *FlowServer) NotifyTimeout(slot int, cap capability.Capability) error {
	frame := timeoutFrame{Type: "response_timeout", Slot: slot, Capability: cap.String()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("purchase application not connected")
	}
	return s.writeLocked(frame)
}

// Close implements flowchannel.Channel.
func (s *FlowServer) Close(slot int, cap capability.Capability) error {
	s.dropTokens(slot, cap)
	return nil
}

func (s *FlowServer) dropTokens(slot int, cap capability.Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, pt := range s.tokens {
		if pt.slot == slot && pt.cap == cap {
			delete(s.tokens, token)
		}
	}
}

// writeLocked sends one JSON frame. Caller holds s.mu; gorilla connections
// support only one concurrent writer.
func (s *FlowServer) writeLocked(frame interface{}) error {
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(frame)
}

// ---- HTTP handlers ----

func (s *FlowServer) handleFlowSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		logrus.Warn("purchase application reconnected, dropping previous connection")
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	logrus.Infof("purchase application connected from %s", conn.RemoteAddr())
	go s.readLoop(conn)
}

func (s *FlowServer) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	for {
		var frame responseFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Warnf("purchase application connection lost: %v", err)
			}
			return
		}
		s.dispatch(frame)
	}
}

// dispatch validates one inbound frame and forwards it to the orchestrator
// layer. Invalid frames are discarded with a diagnostic and never corrupt
// orchestrator state.
func (s *FlowServer) dispatch(frame responseFrame) {
	s.mu.Lock()
	pt, ok := s.tokens[frame.Token]
	s.mu.Unlock()

	if !ok {
		s.cfg.Diag.Report("unknown_flow_token", fmt.Sprintf("no open flow for token %q", frame.Token))
		return
	}

	cap, err := capability.Parse(frame.Capability)
	if err != nil || cap != pt.cap || frame.Slot != pt.slot {
		s.cfg.Diag.Report("mismatched_flow_frame",
			fmt.Sprintf("frame (slot %d, capability %q) does not match flow (slot %d, %s)",
				frame.Slot, frame.Capability, pt.slot, pt.cap))
		return
	}

	resp := flowchannel.Response{
		Type:           pt.responseType,
		Capability:     cap,
		Slot:           frame.Slot,
		FailureCode:    flowchannel.FailureCode(frame.FailureCode),
		FailureReason:  frame.FailureReason,
		DurationMillis: frame.DurationMillis,
	}
	s.cfg.OnResponse(pt.slot, pt.cap, resp)
}

func (s *FlowServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *FlowServer) handleSliceConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var snapshot slice.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		http.Error(w, fmt.Sprintf("invalid snapshot: %v", err), http.StatusBadRequest)
		return
	}
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = time.Now()
	}

	s.cfg.OnSliceConfig(&snapshot)
	w.WriteHeader(http.StatusNoContent)
}
