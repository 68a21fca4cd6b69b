package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start background processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Shelf.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop background processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Shelf.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Shelf.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan requests an out-of-band scan.
func (c *Client) Scan(reason string) (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("Shelf.Scan", ScanRequest{Reason: reason}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause suspends scheduled and triggered scans.
func (c *Client) Pause() (*PauseResponse, error) {
	var resp PauseResponse
	if err := c.client.Call("Shelf.Pause", PauseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume lifts a pause.
func (c *Client) Resume() (*ResumeResponse, error) {
	var resp ResumeResponse
	if err := c.client.Call("Shelf.Resume", ResumeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Lifecycle reports a desktop session transition to the daemon.
func (c *Client) Lifecycle(state string) (*LifecycleResponse, error) {
	var resp LifecycleResponse
	if err := c.client.Call("Shelf.Lifecycle", LifecycleRequest{State: state}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordsList returns tracked records optionally filtered by statuses.
func (c *Client) RecordsList(statuses []string) (*RecordsListResponse, error) {
	var resp RecordsListResponse
	req := RecordsListRequest{Statuses: statuses}
	if err := c.client.Call("Shelf.RecordsList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordDescribe returns details for a single record.
func (c *Client) RecordDescribe(id int64) (*RecordDescribeResponse, error) {
	var resp RecordDescribeResponse
	if err := c.client.Call("Shelf.RecordDescribe", RecordDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordSkip dismisses a record permanently.
func (c *Client) RecordSkip(id int64) (*RecordSkipResponse, error) {
	var resp RecordSkipResponse
	if err := c.client.Call("Shelf.RecordSkip", RecordSkipRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RulesList returns the stored ruleset in evaluation order.
func (c *Client) RulesList() (*RulesListResponse, error) {
	var resp RulesListResponse
	if err := c.client.Call("Shelf.RulesList", RulesListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FoldersList returns registered watched folders.
func (c *Client) FoldersList() (*FoldersListResponse, error) {
	var resp FoldersListResponse
	if err := c.client.Call("Shelf.FoldersList", FoldersListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FolderEnable flips a watched folder by name.
func (c *Client) FolderEnable(name string, enabled bool) (*FolderEnableResponse, error) {
	var resp FolderEnableResponse
	req := FolderEnableRequest{Name: name, Enabled: enabled}
	if err := c.client.Call("Shelf.FolderEnable", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Apply organizes ready records. An empty id list applies all of them.
func (c *Client) Apply(ids []int64) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := c.client.Call("Shelf.Apply", ApplyRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Undo reverses the most recent completed transfer.
func (c *Client) Undo() (*UndoResponse, error) {
	var resp UndoResponse
	if err := c.client.Call("Shelf.Undo", UndoRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Redo re-applies the most recently undone transfer.
func (c *Client) Redo() (*RedoResponse, error) {
	var resp RedoResponse
	if err := c.client.Call("Shelf.Redo", RedoRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns recent undo-ledger entries, newest first.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Shelf.History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Shelf.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Shelf.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Shelf.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
