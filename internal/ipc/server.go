package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"regexp"
	"strings"
	"sync"

	"log/slog"

	"fsal/internal/daemon"
	"fsal/internal/fsindex"
	"fsal/internal/logging"
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
	if err := rpcServer.RegisterName("FSAL", srv); err != nil {
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
			logging.String(logging.FieldErrorHint, "Remove the socket file manually before the next start"))
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
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func cleanPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	resp.Running = status.Running
	resp.PID = status.PID
	resp.BasePaths = status.BasePaths
	resp.SocketPath = status.SocketPath
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath
	resp.Files = status.Index.Files
	resp.Dirs = status.Index.Dirs
	resp.PendingEvents = status.Index.Pending
	return nil
}

func (s *service) ListBasePaths(_ ListBasePathsRequest, resp *ListBasePathsResponse) error {
	resp.BasePaths = s.daemon.Indexer().BasePaths()
	return nil
}

func (s *service) ListDir(req ListDirRequest, resp *ListDirResponse) error {
	store := s.daemon.Store()
	path := cleanPath(req.Path)

	parentID := int64(fsindex.RootID)
	if path != "" && path != fsindex.RootPath {
		entry, err := store.GetByPath(s.ctx, path)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%s: no such directory", req.Path)
		}
		if !entry.IsDir() {
			return fmt.Errorf("%s: not a directory", req.Path)
		}
		parentID = entry.ID
	}

	entries, err := store.ListDir(s.ctx, parentID)
	if err != nil {
		return err
	}
	resp.Entries = fromEntries(entries)
	return nil
}

func (s *service) ListDescendants(req ListDescendantsRequest, resp *ListDescendantsResponse) error {
	store := s.daemon.Store()
	path := cleanPath(req.Path)
	if path == "" {
		path = fsindex.RootPath
	}

	opts := fsindex.DescendantOptions{
		CountOnly:    req.CountOnly,
		Offset:       req.Offset,
		Limit:        req.Limit,
		Order:        req.Order,
		Span:         req.Span,
		EntryType:    fsindex.EntryType(req.EntryType),
		IgnoredPaths: req.IgnoredPaths,
	}

	count, err := store.CountDescendants(s.ctx, path, opts)
	if err != nil {
		return err
	}
	resp.Count = count
	if req.CountOnly {
		return nil
	}

	entries, err := store.ListDescendants(s.ctx, path, opts)
	if err != nil {
		return err
	}
	resp.Entries = fromEntries(entries)
	return nil
}

func (s *service) Search(req SearchRequest, resp *SearchResponse) error {
	store := s.daemon.Store()
	query := cleanPath(req.Query)
	if query == "" {
		return errors.New("empty search query")
	}

	var entries []*fsindex.Entry
	entry, err := store.GetByPath(s.ctx, query)
	if err != nil {
		return err
	}
	if entry != nil && entry.IsDir() {
		resp.IsMatch = true
		entries, err = store.ListDir(s.ctx, entry.ID)
	} else {
		entries, err = store.SearchNames(s.ctx, strings.Fields(req.Query), req.WholeWords)
	}
	if err != nil {
		return err
	}

	excludes, err := compilePatterns(req.ExcludePatterns)
	if err != nil {
		return err
	}
	if len(excludes) > 0 {
		kept := entries[:0]
		for _, e := range entries {
			if !matchesAny(excludes, e.Name) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	resp.Entries = fromEntries(entries)
	return nil
}

func (s *service) FilterPaths(req FilterPathsRequest, resp *FilterPathsResponse) error {
	cleaned := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		if p = cleanPath(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	entries, err := s.daemon.Store().FilterPaths(s.ctx, cleaned)
	if err != nil {
		return err
	}
	resp.Entries = fromEntries(entries)
	return nil
}

func (s *service) Exists(req ExistsRequest, resp *ExistsResponse) error {
	entry, err := s.daemon.Store().GetByPath(s.ctx, cleanPath(req.Path))
	if err != nil {
		return err
	}
	resp.Exists = entry != nil
	return nil
}

func (s *service) IsDir(req IsDirRequest, resp *IsDirResponse) error {
	entry, err := s.daemon.Store().GetByPath(s.ctx, cleanPath(req.Path))
	if err != nil {
		return err
	}
	resp.IsDir = entry != nil && entry.IsDir()
	return nil
}

func (s *service) IsFile(req IsFileRequest, resp *IsFileResponse) error {
	entry, err := s.daemon.Store().GetByPath(s.ctx, cleanPath(req.Path))
	if err != nil {
		return err
	}
	resp.IsFile = entry != nil && !entry.IsDir()
	return nil
}

func (s *service) GetEntry(req GetEntryRequest, resp *GetEntryResponse) error {
	entry, err := s.daemon.Store().GetByPath(s.ctx, cleanPath(req.Path))
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%s: not indexed", req.Path)
	}
	resp.Entry = fromEntry(entry)
	return nil
}

func (s *service) PathSize(req PathSizeRequest, resp *PathSizeResponse) error {
	size, err := s.daemon.Store().PathSize(s.ctx, cleanPath(req.Path))
	if err != nil {
		return err
	}
	resp.Size = size
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	s.log().Debug("remove requested", logging.String(logging.FieldPath, req.Path))
	if err := s.daemon.Indexer().Remove(s.ctx, req.Path); err != nil {
		return err
	}
	resp.Removed = true
	s.log().Info("path removed via IPC",
		logging.String(logging.FieldEventType, "remove"),
		logging.String(logging.FieldPath, req.Path))
	return nil
}

func (s *service) Transfer(req TransferRequest, resp *TransferResponse) error {
	s.log().Debug("transfer requested",
		logging.String("source", req.Source),
		logging.String("destination", req.Destination))
	rel, err := s.daemon.Indexer().Transfer(s.ctx, req.Source, req.Destination)
	if err != nil {
		return err
	}
	resp.Path = rel
	return nil
}

func (s *service) Consolidate(req ConsolidateRequest, resp *ConsolidateResponse) error {
	s.log().Debug("consolidate requested",
		logging.Int("sources", len(req.Sources)),
		logging.String("destination", req.Destination))
	moved, err := s.daemon.Indexer().Consolidate(s.ctx, req.Sources, req.Destination)
	resp.Moved = moved
	if err != nil {
		if len(moved) == 0 {
			return err
		}
		resp.Message = err.Error()
	}
	return nil
}

func (s *service) Refresh(_ RefreshRequest, _ *RefreshResponse) error {
	s.log().Debug("refresh requested")
	return s.daemon.Indexer().Refresh(s.ctx)
}

func (s *service) RefreshPath(req RefreshPathRequest, _ *RefreshPathResponse) error {
	s.log().Debug("subtree refresh requested", logging.String(logging.FieldPath, req.Path))
	return s.daemon.Indexer().RefreshPath(s.ctx, req.Path)
}

func (s *service) GetChanges(req GetChangesRequest, resp *GetChangesResponse) error {
	events, err := s.daemon.Store().Events(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Events = make([]Event, 0, len(events))
	for _, ev := range events {
		resp.Events = append(resp.Events, Event{
			ID:         ev.ID,
			Type:       string(ev.Type),
			Path:       ev.Path,
			IsDir:      ev.IsDir,
			RecordedAt: ev.RecordedAt,
		})
	}
	return nil
}

func (s *service) ConfirmChanges(req ConfirmChangesRequest, resp *ConfirmChangesResponse) error {
	confirmed, err := s.daemon.Store().ConfirmEvents(s.ctx, req.Count)
	if err != nil {
		return err
	}
	resp.Confirmed = confirmed
	return nil
}

func (s *service) SetWhitelist(req SetWhitelistRequest, _ *SetWhitelistResponse) error {
	s.daemon.Indexer().Filter().SetWhitelist(req.Paths)
	s.log().Info("whitelist updated",
		logging.String(logging.FieldEventType, "whitelist_update"),
		logging.Int("prefixes", len(req.Paths)))
	return nil
}

func (s *service) ImportBundle(req ImportBundleRequest, resp *ImportBundleResponse) error {
	manager := s.daemon.Bundles()
	if manager == nil {
		return errors.New("bundle support is disabled")
	}
	files, err := manager.Import(s.ctx, req.Path)
	if err != nil {
		return err
	}
	resp.Files = files
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.Store().CheckHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.ColumnsPresent = append(resp.ColumnsPresent, health.ColumnsPresent...)
	resp.MissingColumns = append(resp.MissingColumns, health.MissingColumns...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalEntries = health.TotalEntries
	resp.Error = health.Error
	return err
}

// compilePatterns builds case-insensitive whole-name matchers: an exclude
// pattern drops an entry only when it matches the entire name.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		rx, err := regexp.Compile("(?i)^(?:" + pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, rx)
	}
	return compiled, nil
}

func matchesAny(patterns []*regexp.Regexp, name string) bool {
	for _, rx := range patterns {
		if rx.MatchString(name) {
			return true
		}
	}
	return false
}
