// Package deliver adapts the teacher's resty-backed HTTP client (built
// for fetching camera snapshots) into the downstream callback capability
// spec.md §9 calls for: "callback objects ... modeled as a capability
// {deliver(message)}, passed as a value parameter to the loop and
// synchronizer."
package deliver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fieldloom/mcmot-sync/internal/model"
)

// Deliverer is the capability a ConsumerLoop and a Sequencer drain invoke
// once a group (or a single frame, outside unify mode) is ready to hand to
// the downstream stage.
type Deliverer interface {
	Deliver(ctx context.Context, group model.Group) error
}

// HTTPDeliverer POSTs a group's envelope JSON to a configured downstream
// URL, using the same client construction (timeout, retry count/wait,
// tuned transport) the teacher uses for its camera GET requests.
type HTTPDeliverer struct {
	client *resty.Client
	url    string
}

// NewHTTPDeliverer builds a Deliverer against targetURL.
func NewHTTPDeliverer(targetURL string) *HTTPDeliverer {
	client := resty.New().
		SetTimeout(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(50*time.Millisecond).
		SetDisableWarn(true)

	transport := &http.Transport{
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ResponseHeaderTimeout: 3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	client.SetTransport(transport)

	return &HTTPDeliverer{client: client, url: targetURL}
}

// groupPayload is the wire shape posted to the downstream stage: the
// grouping key plus each member record's raw envelope payload.
type groupPayload struct {
	ID          string            `json:"id"`
	GroupingKey float64           `json:"grouping_key"`
	Frames      []frameRecordView `json:"frames"`
}

type frameRecordView struct {
	CameraID       string          `json:"camera_id"`
	FrameNumber    int             `json:"frame_number"`
	FrameTimestamp float64         `json:"frame_timestamp"`
	Payload        interface{}     `json:"payload,omitempty"`
}

func (h *HTTPDeliverer) Deliver(ctx context.Context, group model.Group) error {
	payload := groupPayload{
		ID:          group.ID.String(),
		GroupingKey: group.GroupingKey,
		Frames:      make([]frameRecordView, len(group.Records)),
	}
	for i, r := range group.Records {
		payload.Frames[i] = frameRecordView{
			CameraID:       r.CameraID,
			FrameNumber:    r.FrameNumber,
			FrameTimestamp: r.FrameTimestamp,
			Payload:        r.Payload,
		}
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(h.url)
	if err != nil {
		return &model.TransientError{Op: "deliver", Err: err}
	}
	if resp.StatusCode() >= 500 {
		return &model.TransientError{Op: "deliver", Err: fmt.Errorf("downstream status %s", resp.Status())}
	}
	if resp.IsError() {
		return &model.TransientError{Op: "deliver", Err: fmt.Errorf("downstream rejected group: %s", resp.Status())}
	}
	return nil
}

// Func adapts a plain function into a Deliverer, used in tests and for
// in-process stages that skip the HTTP hop entirely.
type Func func(ctx context.Context, group model.Group) error

func (f Func) Deliver(ctx context.Context, group model.Group) error {
	return f(ctx, group)
}
