package estimator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"BodyMeasure/internal/entity"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrRemoteRejected = errors.New("estimator: remote service rejected the request")

type RemoteConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type remoteView struct {
	Viewpoint entity.Viewpoint `json:"viewpoint"`
	Format    string           `json:"format"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Image     string           `json:"image"`
	Depth     string           `json:"depth,omitempty"`
}

type remoteRequest struct {
	Reference entity.Viewpoint `json:"reference"`
	Views     []remoteView     `json:"views"`
}

type remoteResponse struct {
	Measurements []entity.PixelMeasurement `json:"measurements"`
	Error        string                    `json:"error,omitempty"`
}

// RemoteEstimator forwards views to an inference service over websocket.
// Each exchange is one text frame out and one text frame back, and a
// connection serves a single exchange at a time.
type RemoteEstimator struct {
	cfg    RemoteConfig
	dialer *websocket.Dialer
	idle   chan *websocket.Conn
	log    *logrus.Logger
}

func NewRemote(cfg RemoteConfig, log *logrus.Logger) *RemoteEstimator {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &RemoteEstimator{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
		idle: make(chan *websocket.Conn, cfg.PoolSize),
		log:  log,
	}
}

func (e *RemoteEstimator) Name() string {
	return "remote"
}

func (e *RemoteEstimator) Estimate(ctx context.Context, views []entity.View) ([]entity.PixelMeasurement, error) {
	ref, err := ReferenceView(views)
	if err != nil {
		return nil, err
	}

	req := remoteRequest{
		Reference: ref.Viewpoint,
		Views:     make([]remoteView, 0, len(views)),
	}
	for _, v := range views {
		rv := remoteView{
			Viewpoint: v.Viewpoint,
			Format:    v.Format,
			Width:     v.Width,
			Height:    v.Height,
			Image:     base64.StdEncoding.EncodeToString(v.Raw),
		}
		if len(v.Depth) > 0 {
			rv.Depth = base64.StdEncoding.EncodeToString(v.Depth)
		}
		req.Views = append(req.Views, rv)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode remote request: %w", err)
	}

	conn, reused, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := e.exchange(ctx, conn, payload)
	if err != nil && reused && ctx.Err() == nil {
		// Pooled connection went stale; one fresh attempt.
		e.log.Debugf("Pooled estimator connection failed, redialing: %v", err)
		conn.Close()
		conn, err = e.dial(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = e.exchange(ctx, conn, payload)
	}
	if err != nil {
		conn.Close()
		if ctxErr := contextError(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	e.release(conn)

	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemoteRejected, resp.Error)
	}

	e.log.WithFields(logrus.Fields{
		"metrics": len(resp.Measurements),
		"views":   len(views),
	}).Debug("Received response from remote estimator")

	return resp.Measurements, nil
}

func (e *RemoteEstimator) exchange(ctx context.Context, conn *websocket.Conn, payload []byte) (*remoteResponse, error) {
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
		conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetWriteDeadline(e.deadline(ctx, e.cfg.WriteTimeout)); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("send remote request: %w", err)
	}

	if err := conn.SetReadDeadline(e.deadline(ctx, e.cfg.ReadTimeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read remote response: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var resp remoteResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("decode remote response: %w", err)
	}

	return &resp, nil
}

// contextError also reports an expired deadline whose timer has not fired
// yet, since socket deadlines are set from it.
func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return nil
}

func (e *RemoteEstimator) deadline(ctx context.Context, limit time.Duration) time.Time {
	d := time.Now().Add(limit)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

func (e *RemoteEstimator) acquire(ctx context.Context) (*websocket.Conn, bool, error) {
	select {
	case conn := <-e.idle:
		return conn, true, nil
	default:
	}

	conn, err := e.dial(ctx)
	return conn, false, err
}

func (e *RemoteEstimator) dial(ctx context.Context) (*websocket.Conn, error) {
	e.log.Debugf("Connecting to estimator at %s", e.cfg.URL)

	conn, _, err := e.dialer.DialContext(ctx, e.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", e.cfg.URL, err)
	}
	return conn, nil
}

func (e *RemoteEstimator) release(conn *websocket.Conn) {
	select {
	case e.idle <- conn:
	default:
		conn.Close()
	}
}

// Close drops every idle connection.
func (e *RemoteEstimator) Close() {
	for {
		select {
		case conn := <-e.idle:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(e.cfg.WriteTimeout))
			conn.Close()
		default:
			return
		}
	}
}
