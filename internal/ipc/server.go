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

	"shelf/internal/daemon"
	"shelf/internal/logging"
	"shelf/internal/logs"
	"shelf/internal/rules"
	"shelf/internal/store"
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
	if err := rpcServer.RegisterName("Shelf", srv); err != nil {
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
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
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
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun shelf stop"))
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

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fromRecord(record *store.FileRecord) FileRecord {
	return FileRecord{
		ID:                   record.ID,
		Path:                 record.Path,
		FolderID:             record.FolderID,
		Name:                 record.Name,
		Extension:            record.Extension,
		SizeBytes:            record.SizeBytes,
		Status:               string(record.Status),
		SuggestedDestination: record.SuggestedDestination,
		SuggestionSource:     string(record.SuggestionSource),
		SuggestionConfidence: record.SuggestionConfidence,
		MatchedRuleID:        record.MatchedRuleID,
		ErrorMessage:         record.ErrorMessage,
		FileModifiedAt:       record.FileModifiedAt,
		FirstSeenAt:          record.FirstSeenAt,
		UpdatedAt:            record.UpdatedAt,
	}
}

func fromFolder(folder *store.Folder) Folder {
	dto := Folder{
		ID:       folder.ID,
		Name:     folder.Name,
		Type:     string(folder.Type),
		Path:     folder.Path,
		Enabled:  folder.Enabled,
		HasToken: folder.TokenJSON != "",
	}
	if folder.LastScanAt != nil {
		dto.LastScanAt = formatTime(*folder.LastScanAt)
	}
	return dto
}

func fromRule(rule rules.Rule) Rule {
	conditions, err := rules.EncodeConditions(rule.Conditions)
	if err != nil {
		conditions = ""
	}
	exclusions, err := rules.EncodeConditions(rule.Exclusions)
	if err != nil {
		exclusions = ""
	}
	return Rule{
		ID:          rule.ID,
		Name:        rule.Name,
		Enabled:     rule.Enabled,
		Action:      string(rule.Action),
		Destination: rule.Destination,
		SortOrder:   rule.SortOrder,
		Conditions:  conditions,
		Exclusions:  exclusions,
	}
}

func fromTransfer(entry *store.TransferEntry) TransferEntry {
	return TransferEntry{
		ID:              entry.ID,
		Operation:       string(entry.Operation),
		SourcePath:      entry.SourcePath,
		DestinationPath: entry.DestinationPath,
		RecordID:        entry.RecordID,
		PerformedAt:     entry.PerformedAt,
		Undone:          entry.Undone,
	}
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
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
	resp.Scheduler = SchedulerStatus{
		Running:           status.Scheduler.Running,
		Paused:            status.Scheduler.Paused,
		Lifecycle:         string(status.Scheduler.Lifecycle),
		Mode:              string(status.Scheduler.Mode),
		Failures:          status.Scheduler.Failures,
		LastScanAt:        formatTime(status.Scheduler.LastScanAt),
		NextScanAt:        formatTime(status.Scheduler.NextScanAt),
		EffectiveInterval: status.Scheduler.EffectiveInterval.String(),
	}
	resp.RecordStats = make(map[string]int, len(status.RecordStats))
	for k, v := range status.RecordStats {
		resp.RecordStats[string(k)] = v
	}
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	resp.PID = status.PID
	resp.VolumeMonitoring = status.VolumeMonitoring
	resp.AuditDropped = status.AuditDropped
	return nil
}

func (s *service) Scan(req ScanRequest, resp *ScanResponse) error {
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}
	if err := s.daemon.TriggerScan(reason); err != nil {
		resp.Accepted = false
		resp.Message = err.Error()
		return nil
	}
	resp.Accepted = true
	resp.Message = "scan requested"
	s.log().Info("scan triggered via IPC",
		logging.String(logging.FieldEventType, "scan_trigger"),
		logging.String("reason", reason))
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *PauseResponse) error {
	if err := s.daemon.Pause(); err != nil {
		return err
	}
	resp.Paused = true
	s.log().Info("automation paused via IPC",
		logging.String(logging.FieldEventType, "automation_pause"))
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *ResumeResponse) error {
	if err := s.daemon.Resume(); err != nil {
		return err
	}
	resp.Resumed = true
	s.log().Info("automation resumed via IPC",
		logging.String(logging.FieldEventType, "automation_resume"))
	return nil
}

func (s *service) Lifecycle(req LifecycleRequest, resp *LifecycleResponse) error {
	if err := s.daemon.Lifecycle(req.State); err != nil {
		return err
	}
	resp.Applied = true
	s.log().Debug("lifecycle state applied",
		logging.String("state", req.State))
	return nil
}

func (s *service) RecordsList(req RecordsListRequest, resp *RecordsListResponse) error {
	statuses := make([]store.RecordStatus, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := store.ParseStatus(raw)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	records, err := s.daemon.ListRecords(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Records = make([]FileRecord, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		resp.Records = append(resp.Records, fromRecord(record))
	}
	return nil
}

func (s *service) RecordDescribe(req RecordDescribeRequest, resp *RecordDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	record, err := s.daemon.GetRecord(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("record %d not found", req.ID)
	}
	resp.Record = fromRecord(record)
	return nil
}

func (s *service) RecordSkip(req RecordSkipRequest, resp *RecordSkipResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	if err := s.daemon.SkipRecord(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Skipped = true
	s.log().Info("record skipped via IPC",
		logging.String(logging.FieldEventType, "record_skip"),
		logging.Int64(logging.FieldRecordID, req.ID))
	return nil
}

func (s *service) RulesList(_ RulesListRequest, resp *RulesListResponse) error {
	ruleset, err := s.daemon.ListRules(s.ctx)
	if err != nil {
		return err
	}
	resp.Rules = make([]Rule, 0, len(ruleset))
	for _, rule := range ruleset {
		resp.Rules = append(resp.Rules, fromRule(rule))
	}
	return nil
}

func (s *service) FoldersList(_ FoldersListRequest, resp *FoldersListResponse) error {
	folders, err := s.daemon.ListFolders(s.ctx)
	if err != nil {
		return err
	}
	resp.Folders = make([]Folder, 0, len(folders))
	for _, folder := range folders {
		if folder == nil {
			continue
		}
		resp.Folders = append(resp.Folders, fromFolder(folder))
	}
	return nil
}

func (s *service) FolderEnable(req FolderEnableRequest, resp *FolderEnableResponse) error {
	if req.Name == "" {
		return errors.New("folder name is required")
	}
	folder, err := s.daemon.SetFolderEnabled(s.ctx, req.Name, req.Enabled)
	if err != nil {
		return err
	}
	resp.Folder = fromFolder(folder)
	s.log().Info("folder toggled via IPC",
		logging.String(logging.FieldEventType, "folder_toggle"),
		logging.String(logging.FieldFolder, folder.Name),
		logging.Bool("enabled", req.Enabled))
	return nil
}

func (s *service) Apply(req ApplyRequest, resp *ApplyResponse) error {
	s.log().Debug("apply requested", logging.Int("record_count", len(req.IDs)))
	results, err := s.daemon.Apply(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Results = make([]ApplyOutcome, 0, len(results))
	for _, result := range results {
		outcome := ApplyOutcome{
			RecordID:    result.RecordID,
			Name:        result.Name,
			Destination: result.Destination,
		}
		if result.Err != nil {
			outcome.Error = result.Err.Error()
		}
		resp.Results = append(resp.Results, outcome)
	}
	s.log().Info("records organized via IPC",
		logging.String(logging.FieldEventType, "apply"),
		logging.Int("result_count", len(resp.Results)))
	return nil
}

func (s *service) Undo(_ UndoRequest, resp *UndoResponse) error {
	entry, err := s.daemon.UndoLast(s.ctx)
	if err != nil {
		return err
	}
	resp.Entry = fromTransfer(entry)
	s.log().Info("transfer undone via IPC",
		logging.String(logging.FieldEventType, "undo"),
		logging.Int64("entry_id", entry.ID))
	return nil
}

func (s *service) Redo(_ RedoRequest, resp *RedoResponse) error {
	entry, err := s.daemon.RedoLast(s.ctx)
	if err != nil {
		return err
	}
	resp.Entry = fromTransfer(entry)
	s.log().Info("transfer redone via IPC",
		logging.String(logging.FieldEventType, "redo"),
		logging.Int64("entry_id", entry.ID))
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.daemon.History(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Entries = make([]TransferEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		resp.Entries = append(resp.Entries, fromTransfer(entry))
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalRecords = health.TotalRecords
	resp.Error = health.Error
	if err != nil {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
