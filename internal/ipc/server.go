package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"github.com/zackaholic/VHS-Coffeeman/internal/daemon"
	"github.com/zackaholic/VHS-Coffeeman/internal/journal"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
	"github.com/zackaholic/VHS-Coffeeman/internal/recipes"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Coffeeman", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun coffeeman stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.Pong = true
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.State = string(status.Machine.State)
	resp.JobID = status.Machine.JobID
	resp.Tag = status.Machine.Tag
	resp.Recipe = status.Machine.Recipe
	resp.Fault = status.Machine.Fault
	resp.CupPresent = status.Machine.CupPresent
	resp.PoursTotal = status.Journal.Total
	resp.PoursCompleted = status.Journal.Completed
	resp.PoursFailed = status.Journal.Failed
	resp.JournalPath = status.JournalPath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	if len(status.Devices) > 0 {
		resp.Dependencies = make([]DependencyStatus, 0, len(status.Devices))
		for _, dep := range status.Devices {
			resp.Dependencies = append(resp.Dependencies, DependencyStatus{
				Name:        dep.Name,
				Description: dep.Description,
				Optional:    dep.Optional,
				Available:   dep.Available,
				Detail:      dep.Detail,
			})
		}
	}
	return nil
}

func (s *service) Pour(req PourRequest, resp *PourResponse) error {
	if req.Tag == "" {
		return errors.New("pour requires a tape tag")
	}
	s.log().Debug("pour requested", logging.String(logging.FieldTag, req.Tag))
	if err := s.daemon.Pour(s.ctx, req.Tag); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "pour started"
	s.log().Info("pour started via IPC",
		logging.String(logging.FieldEventType, "pour_start"),
		logging.String(logging.FieldTag, req.Tag))
	return nil
}

func (s *service) Reset(_ ResetRequest, resp *ResetResponse) error {
	s.log().Debug("operator reset requested")
	if err := s.daemon.Reset(s.ctx); err != nil {
		resp.Reset = false
		resp.Message = err.Error()
		return nil
	}
	resp.Reset = true
	resp.Message = "machine reset"
	s.log().Info("machine reset via IPC",
		logging.String(logging.FieldEventType, "operator_reset"))
	return nil
}

func (s *service) Prime(req PrimeRequest, resp *PrimeResponse) error {
	s.log().Debug("prime requested", logging.Int(logging.FieldChannel, req.Channel))
	if err := s.daemon.Prime(s.ctx, req.Channel); err != nil {
		resp.Done = false
		resp.Message = err.Error()
		return nil
	}
	resp.Done = true
	resp.Message = fmt.Sprintf("channel %d primed", req.Channel)
	return nil
}

func (s *service) Clean(req CleanRequest, resp *CleanResponse) error {
	s.log().Debug("clean requested", logging.Int(logging.FieldChannel, req.Channel))
	if err := s.daemon.Clean(s.ctx, req.Channel); err != nil {
		resp.Done = false
		resp.Message = err.Error()
		return nil
	}
	resp.Done = true
	resp.Message = fmt.Sprintf("channel %d cleaned", req.Channel)
	return nil
}

func (s *service) RunPump(req RunPumpRequest, resp *RunPumpResponse) error {
	s.log().Debug("pump run requested",
		logging.Int(logging.FieldChannel, req.Channel),
		logging.Float64("distance_mm", req.DistanceMM))
	if err := s.daemon.RunPump(s.ctx, req.Channel, req.DistanceMM); err != nil {
		resp.Done = false
		resp.Message = err.Error()
		return nil
	}
	resp.Done = true
	resp.Message = fmt.Sprintf("channel %d ran %.0f mm", req.Channel, req.DistanceMM)
	return nil
}

func (s *service) Recipes(_ RecipesRequest, resp *RecipesResponse) error {
	loaded, err := s.daemon.Recipes()
	if err != nil {
		return err
	}
	resp.Recipes = make([]RecipeSummary, 0, len(loaded))
	for _, recipe := range loaded {
		resp.Recipes = append(resp.Recipes, convertRecipe(recipe))
	}
	return nil
}

func (s *service) ReloadRecipes(_ ReloadRecipesRequest, resp *ReloadRecipesResponse) error {
	s.log().Debug("recipe reload requested")
	count, err := s.daemon.ReloadRecipes()
	if err != nil {
		return err
	}
	resp.Count = count
	s.log().Info("recipes reloaded",
		logging.String(logging.FieldEventType, "recipes_reloaded"),
		logging.Int("recipe_count", count))
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, convertEntry(entry))
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func convertRecipe(recipe recipes.Recipe) RecipeSummary {
	summary := RecipeSummary{
		Name:        recipe.Name,
		Tag:         recipe.Tag,
		TotalOunces: recipe.TotalOunces(),
		Source:      recipe.Source,
	}
	summary.Ingredients = make([]RecipeIngredient, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		summary.Ingredients = append(summary.Ingredients, RecipeIngredient{
			Pump:     ing.Pump,
			Name:     ing.Name,
			AmountOz: ing.AmountOz,
		})
	}
	return summary
}

func convertEntry(entry journal.Entry) HistoryEntry {
	converted := HistoryEntry{
		ID:               entry.ID,
		Tag:              entry.Tag,
		Recipe:           entry.Recipe,
		Operation:        entry.Operation,
		Status:           entry.Status,
		Fault:            entry.Fault,
		IngredientsTotal: entry.IngredientsTotal,
		IngredientsDone:  entry.IngredientsDone,
		StartedAt:        entry.StartedAt.Format(time.RFC3339),
	}
	if !entry.FinishedAt.IsZero() {
		converted.FinishedAt = entry.FinishedAt.Format(time.RFC3339)
	}
	return converted
}
