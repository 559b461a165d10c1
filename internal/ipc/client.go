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

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("FSAL.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBasePaths returns the managed root directories.
func (c *Client) ListBasePaths() (*ListBasePathsResponse, error) {
	var resp ListBasePathsResponse
	if err := c.client.Call("FSAL.ListBasePaths", ListBasePathsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListDir lists the direct children of an indexed directory.
func (c *Client) ListDir(path string) (*ListDirResponse, error) {
	var resp ListDirResponse
	if err := c.client.Call("FSAL.ListDir", ListDirRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListDescendants pages through a subtree.
func (c *Client) ListDescendants(req ListDescendantsRequest) (*ListDescendantsResponse, error) {
	var resp ListDescendantsResponse
	if err := c.client.Call("FSAL.ListDescendants", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search looks up entries by name.
func (c *Client) Search(req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.client.Call("FSAL.Search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FilterPaths reduces candidate paths to the indexed subset.
func (c *Client) FilterPaths(paths []string) (*FilterPathsResponse, error) {
	var resp FilterPathsResponse
	if err := c.client.Call("FSAL.FilterPaths", FilterPathsRequest{Paths: paths}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Exists checks whether a path is indexed.
func (c *Client) Exists(path string) (*ExistsResponse, error) {
	var resp ExistsResponse
	if err := c.client.Call("FSAL.Exists", ExistsRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsDir checks whether a path is an indexed directory.
func (c *Client) IsDir(path string) (*IsDirResponse, error) {
	var resp IsDirResponse
	if err := c.client.Call("FSAL.IsDir", IsDirRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsFile checks whether a path is an indexed file.
func (c *Client) IsFile(path string) (*IsFileResponse, error) {
	var resp IsFileResponse
	if err := c.client.Call("FSAL.IsFile", IsFileRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetEntry fetches a single entry by path.
func (c *Client) GetEntry(path string) (*GetEntryResponse, error) {
	var resp GetEntryResponse
	if err := c.client.Call("FSAL.GetEntry", GetEntryRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PathSize sums the size of a subtree.
func (c *Client) PathSize(path string) (*PathSizeResponse, error) {
	var resp PathSizeResponse
	if err := c.client.Call("FSAL.PathSize", PathSizeRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove deletes a managed path from disk and index.
func (c *Client) Remove(path string) (*RemoveResponse, error) {
	var resp RemoveResponse
	if err := c.client.Call("FSAL.Remove", RemoveRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transfer moves an external path under the primary base path.
func (c *Client) Transfer(source, destination string) (*TransferResponse, error) {
	var resp TransferResponse
	req := TransferRequest{Source: source, Destination: destination}
	if err := c.client.Call("FSAL.Transfer", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Consolidate moves indexed subtrees into a destination directory.
func (c *Client) Consolidate(sources []string, destination string) (*ConsolidateResponse, error) {
	var resp ConsolidateResponse
	req := ConsolidateRequest{Sources: sources, Destination: destination}
	if err := c.client.Call("FSAL.Consolidate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh triggers a full index refresh.
func (c *Client) Refresh() error {
	var resp RefreshResponse
	return c.client.Call("FSAL.Refresh", RefreshRequest{}, &resp)
}

// RefreshPath reindexes one subtree.
func (c *Client) RefreshPath(path string) error {
	var resp RefreshPathResponse
	return c.client.Call("FSAL.RefreshPath", RefreshPathRequest{Path: path}, &resp)
}

// GetChanges drains pending change events.
func (c *Client) GetChanges(limit int) (*GetChangesResponse, error) {
	var resp GetChangesResponse
	if err := c.client.Call("FSAL.GetChanges", GetChangesRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmChanges acknowledges consumed change events.
func (c *Client) ConfirmChanges(count int) (*ConfirmChangesResponse, error) {
	var resp ConfirmChangesResponse
	if err := c.client.Call("FSAL.ConfirmChanges", ConfirmChangesRequest{Count: count}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetWhitelist replaces the runtime blacklist-bypass prefixes.
func (c *Client) SetWhitelist(paths []string) error {
	var resp SetWhitelistResponse
	return c.client.Call("FSAL.SetWhitelist", SetWhitelistRequest{Paths: paths}, &resp)
}

// ImportBundle extracts and indexes a content bundle.
func (c *Client) ImportBundle(path string) (*ImportBundleResponse, error) {
	var resp ImportBundleResponse
	if err := c.client.Call("FSAL.ImportBundle", ImportBundleRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("FSAL.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
