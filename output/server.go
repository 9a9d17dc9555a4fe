package output

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
)

// Server 监控HTTP服务
// 功能：提供/metrics（Prometheus）、/statistics（统计行）、/statistics/{link}（单个路段，JSON）与/healthz
type Server struct {
	httpServer *http.Server
	pm         entity.IParkingManager
}

// NewServer 创建监控HTTP服务
// 参数：addr-监听地址，gatherer-指标来源，pm-停车管理器
func NewServer(addr string, gatherer prometheus.Gatherer, pm entity.IParkingManager) *Server {
	s := &Server{pm: pm}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Route("/statistics", func(r chi.Router) {
		r.Get("/", s.statistics)
		r.Get("/{link}", s.linkStatistics)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Handler 路由
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start 在后台协程中开始监听
func (s *Server) Start() {
	go func() {
		log.Infof("monitoring server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("monitoring server: %v", err)
		}
	}()
}

// Shutdown 关闭服务，等待处理中的请求完成
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) statistics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.pm.WriteStatistics(w); err != nil {
		log.Warnf("write statistics: %v", err)
	}
}

func (s *Server) linkStatistics(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "link")
	if !s.pm.HasFacilityAtLink(linkID) {
		http.Error(w, "no parking facility at link "+linkID, http.StatusNotFound)
		return
	}
	stats := lo.Filter(s.pm.FacilityStatistics(), func(st entity.FacilityStatistics, _ int) bool {
		return st.LinkID == linkID
	})
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Warnf("encode link statistics: %v", err)
	}
}
