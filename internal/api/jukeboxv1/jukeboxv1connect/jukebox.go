// Package jukeboxv1connect wires the jukebox.v1 messages to connect handlers and clients.
package jukeboxv1connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	jukeboxv1 "github.com/osa030/jukebox/internal/api/jukeboxv1"
)

// JukeboxServiceName is the fully-qualified name of the JukeboxService service.
const JukeboxServiceName = "jukebox.v1.JukeboxService"

// Procedure paths.
const (
	JukeboxServiceDispatchProcedure        = "/jukebox.v1.JukeboxService/Dispatch"
	JukeboxServiceGetStatusProcedure       = "/jukebox.v1.JukeboxService/GetStatus"
	JukeboxServiceSubscribeStatusProcedure = "/jukebox.v1.JukeboxService/SubscribeStatus"
)

// JukeboxServiceClient is a client for the jukebox.v1.JukeboxService service.
type JukeboxServiceClient interface {
	Dispatch(context.Context, *connect.Request[jukeboxv1.DispatchRequest]) (*connect.Response[jukeboxv1.DispatchResponse], error)
	GetStatus(context.Context, *connect.Request[jukeboxv1.GetStatusRequest]) (*connect.Response[jukeboxv1.GetStatusResponse], error)
	SubscribeStatus(context.Context, *connect.Request[jukeboxv1.SubscribeStatusRequest]) (*connect.ServerStreamForClient[jukeboxv1.Notification], error)
}

// NewJukeboxServiceClient constructs a client for the jukebox.v1.JukeboxService service.
// baseURL is the server root, such as http://127.0.0.1:8080.
func NewJukeboxServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) JukeboxServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jukeboxv1.Codec{})}, opts...)
	return &jukeboxServiceClient{
		dispatch: connect.NewClient[jukeboxv1.DispatchRequest, jukeboxv1.DispatchResponse](
			httpClient, baseURL+JukeboxServiceDispatchProcedure, opts...),
		getStatus: connect.NewClient[jukeboxv1.GetStatusRequest, jukeboxv1.GetStatusResponse](
			httpClient, baseURL+JukeboxServiceGetStatusProcedure, opts...),
		subscribeStatus: connect.NewClient[jukeboxv1.SubscribeStatusRequest, jukeboxv1.Notification](
			httpClient, baseURL+JukeboxServiceSubscribeStatusProcedure, opts...),
	}
}

type jukeboxServiceClient struct {
	dispatch        *connect.Client[jukeboxv1.DispatchRequest, jukeboxv1.DispatchResponse]
	getStatus       *connect.Client[jukeboxv1.GetStatusRequest, jukeboxv1.GetStatusResponse]
	subscribeStatus *connect.Client[jukeboxv1.SubscribeStatusRequest, jukeboxv1.Notification]
}

func (c *jukeboxServiceClient) Dispatch(ctx context.Context, req *connect.Request[jukeboxv1.DispatchRequest]) (*connect.Response[jukeboxv1.DispatchResponse], error) {
	return c.dispatch.CallUnary(ctx, req)
}

func (c *jukeboxServiceClient) GetStatus(ctx context.Context, req *connect.Request[jukeboxv1.GetStatusRequest]) (*connect.Response[jukeboxv1.GetStatusResponse], error) {
	return c.getStatus.CallUnary(ctx, req)
}

func (c *jukeboxServiceClient) SubscribeStatus(ctx context.Context, req *connect.Request[jukeboxv1.SubscribeStatusRequest]) (*connect.ServerStreamForClient[jukeboxv1.Notification], error) {
	return c.subscribeStatus.CallServerStream(ctx, req)
}

// JukeboxServiceHandler is an implementation of the jukebox.v1.JukeboxService service.
type JukeboxServiceHandler interface {
	Dispatch(context.Context, *connect.Request[jukeboxv1.DispatchRequest]) (*connect.Response[jukeboxv1.DispatchResponse], error)
	GetStatus(context.Context, *connect.Request[jukeboxv1.GetStatusRequest]) (*connect.Response[jukeboxv1.GetStatusResponse], error)
	SubscribeStatus(context.Context, *connect.Request[jukeboxv1.SubscribeStatusRequest], *connect.ServerStream[jukeboxv1.Notification]) error
}

// NewJukeboxServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewJukeboxServiceHandler(svc JukeboxServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jukeboxv1.Codec{})}, opts...)

	dispatch := connect.NewUnaryHandler(JukeboxServiceDispatchProcedure, svc.Dispatch, opts...)
	getStatus := connect.NewUnaryHandler(JukeboxServiceGetStatusProcedure, svc.GetStatus, opts...)
	subscribeStatus := connect.NewServerStreamHandler(JukeboxServiceSubscribeStatusProcedure, svc.SubscribeStatus, opts...)

	return "/" + JukeboxServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case JukeboxServiceDispatchProcedure:
			dispatch.ServeHTTP(w, r)
		case JukeboxServiceGetStatusProcedure:
			getStatus.ServeHTTP(w, r)
		case JukeboxServiceSubscribeStatusProcedure:
			subscribeStatus.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
