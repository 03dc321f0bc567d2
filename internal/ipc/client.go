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

// Ping checks that the daemon answers on the socket.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Coffeeman.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests daemon shutdown.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Coffeeman.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon and machine status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Coffeeman.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pour starts a pour for the given tape tag.
func (c *Client) Pour(tag string) (*PourResponse, error) {
	var resp PourResponse
	if err := c.client.Call("Coffeeman.Pour", PourRequest{Tag: tag}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset clears a fault and returns the machine to idle.
func (c *Client) Reset() (*ResetResponse, error) {
	var resp ResetResponse
	if err := c.client.Call("Coffeeman.Reset", ResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Prime primes a pump channel.
func (c *Client) Prime(channel int) (*PrimeResponse, error) {
	var resp PrimeResponse
	if err := c.client.Call("Coffeeman.Prime", PrimeRequest{Channel: channel}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Clean flushes a pump channel.
func (c *Client) Clean(channel int) (*CleanResponse, error) {
	var resp CleanResponse
	if err := c.client.Call("Coffeeman.Clean", CleanRequest{Channel: channel}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunPump runs a pump channel for an explicit travel distance.
func (c *Client) RunPump(channel int, distanceMM float64) (*RunPumpResponse, error) {
	var resp RunPumpResponse
	req := RunPumpRequest{Channel: channel, DistanceMM: distanceMM}
	if err := c.client.Call("Coffeeman.RunPump", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recipes lists loaded recipes.
func (c *Client) Recipes() (*RecipesResponse, error) {
	var resp RecipesResponse
	if err := c.client.Call("Coffeeman.Recipes", RecipesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReloadRecipes rescans the recipe directory.
func (c *Client) ReloadRecipes() (*ReloadRecipesResponse, error) {
	var resp ReloadRecipesResponse
	if err := c.client.Call("Coffeeman.ReloadRecipes", ReloadRecipesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History fetches recent journal entries, newest first.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Coffeeman.History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Coffeeman.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
