package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"trade-sim-go/infrastructure/logger"
	"trade-sim-go/internal/engine"
	"trade-sim-go/internal/layout"
	"trade-sim-go/internal/notify"
	"trade-sim-go/internal/store"
)

// Server 把引擎动作面暴露为 HTTP 接口，并通过 /ws 推送状态事件。
// 展示层（浏览器）只读状态、调用动作，从不直接改状态。
type Server struct {
	engine  *engine.Engine
	store   *store.Store
	notes   *notify.Queue
	layouts *layout.Manager
	hub     *Hub
	log     *logger.Logger
	httpSrv *http.Server
}

// NewServer 创建服务。
func NewServer(addr string, eng *engine.Engine, st *store.Store, notes *notify.Queue, layouts *layout.Manager, hub *Hub, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		engine:  eng,
		store:   st,
		notes:   notes,
		layouts: layouts,
		hub:     hub,
		log:     log,
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if hub != nil {
		// 新客户端先收全量快照，之后只收增量事件
		hub.SetOnConnect(func() (string, interface{}) {
			return "snapshot", s.currentState()
		})
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/orders", s.handleOrders)
		r.Post("/orders", s.handlePlaceOrder)
		r.Delete("/orders/{id}", s.handleCancelOrder)
		r.Get("/positions", s.handlePositions)
		r.Post("/positions/{id}/close", s.handleClosePosition)
		r.Get("/trades", s.handleTrades)
		r.Get("/wallet", s.handleWallet)
		r.Post("/wallet/deposit", s.handleDeposit)
		r.Post("/settings/leverage", s.handleSetLeverage)
		r.Post("/settings/margin-mode", s.handleSetMarginMode)
		r.Post("/settings/pair", s.handleSetPair)
		r.Get("/notifications", s.handleNotifications)
		r.Delete("/notifications/{id}", s.handleRemoveNotification)
		r.Get("/layout", s.handleLayout)
		r.Post("/layout/cycle", s.handleLayoutCycle)
		r.Post("/layout/lock", s.handleLayoutLock)
		r.Post("/layout/panels", s.handleLayoutPanels)
	})
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	return r
}

// Start 启动 HTTP 服务（阻塞）。
func (s *Server) Start() error {
	s.log.Info("api server listening", zap.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown 优雅关闭。
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpSrv.Shutdown(ctx)
}

// stateView 状态总览响应。
type stateView struct {
	ActivePair    string                   `json:"active_pair"`
	LastPrice     float64                  `json:"last_price"`
	Leverage      int                      `json:"leverage"`
	MarginMode    string                   `json:"margin_mode"`
	Wallet        map[string]store.Balance `json:"wallet"`
	Orders        []store.Order            `json:"orders"`
	Positions     []store.Position         `json:"positions"`
	Trades        []store.Trade            `json:"trades"`
	Notifications []notify.Notification    `json:"notifications"`
}

func (s *Server) currentState() stateView {
	pair, lev, mode := s.store.Settings()
	return stateView{
		ActivePair:    pair,
		LastPrice:     s.store.LastPrice(),
		Leverage:      lev,
		MarginMode:    mode,
		Wallet:        s.store.Wallet(),
		Orders:        s.store.Orders(),
		Positions:     s.store.Positions(),
		Trades:        s.store.Trades(50),
		Notifications: s.notes.List(),
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Orders())
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req engine.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := s.engine.PlaceOrder(req)
	if err != nil {
		// 校验拒绝不是服务错误：返回 200 + 拒绝原因，通知队列已有记录
		writeJSON(w, http.StatusOK, map[string]string{"rejected": engine.RejectReason(err)})
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	_ = s.engine.CancelOrder(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Positions())
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClosePosition(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"rejected": engine.RejectReason(err)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Trades(100))
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Wallet())
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Asset  string  `json:"asset"`
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.Deposit(req.Asset, req.Amount); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"rejected": engine.RejectReason(err)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetLeverage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Leverage int `json:"leverage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.SetLeverage(req.Leverage); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"rejected": engine.RejectReason(err)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetMarginMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.SetMarginMode(req.Mode); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"rejected": engine.RejectReason(err)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pair string `json:"pair"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.SetPair(req.Pair); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"rejected": engine.RejectReason(err)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.notes.List())
}

func (s *Server) handleRemoveNotification(w http.ResponseWriter, r *http.Request) {
	s.notes.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type layoutView struct {
	Template string        `json:"template"`
	Locked   bool          `json:"locked"`
	Layout   layout.Layout `json:"layout"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	mode := layoutMode(r)
	l, name := s.layouts.Current(mode)
	writeJSON(w, http.StatusOK, layoutView{Template: name, Locked: s.layouts.Locked(), Layout: l})
}

func (s *Server) handleLayoutCycle(w http.ResponseWriter, r *http.Request) {
	mode := layoutMode(r)
	l, name := s.layouts.Cycle(mode)
	writeJSON(w, http.StatusOK, layoutView{Template: name, Locked: s.layouts.Locked(), Layout: l})
}

func (s *Server) handleLayoutLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locked bool `json:"locked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.layouts.SetLocked(req.Locked)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLayoutPanels(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode   layout.Mode    `json:"mode"`
		Panels []layout.Panel `json:"panels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode != layout.ModeSpot && req.Mode != layout.ModeFutures {
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}
	s.layouts.Register(req.Mode, req.Panels)
	l, name := s.layouts.Current(req.Mode)
	writeJSON(w, http.StatusOK, layoutView{Template: name, Locked: s.layouts.Locked(), Layout: l})
}

func layoutMode(r *http.Request) layout.Mode {
	if r.URL.Query().Get("mode") == string(layout.ModeFutures) {
		return layout.ModeFutures
	}
	return layout.ModeSpot
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
