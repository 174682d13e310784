package rpc

import (
	"context"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is an outliers.Outliers client.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the server at addr. Connections are not encrypted.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}

	return NewClient(conn), nil
}

// NewClient returns a client using conn.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Filter sends df to the server and returns it without the outlier entities.
// params uses the configuration keys (e.g. "id_column", "num_sd"), list
// values must be []any.
func (c *Client) Filter(ctx context.Context, method string, df dataframe.DataFrame, params map[string]any) (dataframe.DataFrame, error) {
	req, err := EncodeFrame(df)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("encode: %w", err)
	}

	req.Fields["method"] = structpb.NewStringValue(method)
	if len(params) > 0 {
		p, err := structpb.NewStruct(params)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("params: %w", err)
		}
		req.Fields["params"] = structpb.NewStructValue(p)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, filterMethod, req, resp); err != nil {
		return dataframe.DataFrame{}, err
	}

	return DecodeFrame(resp)
}
