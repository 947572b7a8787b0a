// ABOUTME: Local command bridge speaking length-prefixed JSON frames over stdio
// ABOUTME: Same operation set as the HTTP facade, trusted local caller, no bearer

package facade

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// maxFrameSize caps a single bridge frame at 1 MiB.
const maxFrameSize = 1 << 20

// BridgeRequest is one framed request from the local caller.
type BridgeRequest struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// BridgeResponse is the framed reply.
type BridgeResponse struct {
	OK     bool     `json:"ok"`
	Result any      `json:"result,omitempty"`
	Error  *OpError `json:"error,omitempty"`
}

// Bridge serves facade operations over a framed stdio pipe. The caller is
// trusted by virtue of having spawned the process, so no bearer credential is
// required on this surface.
type Bridge struct {
	svc    *Service
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// NewBridge creates a bridge reading requests from in and writing responses
// to out.
func NewBridge(svc *Service, in io.Reader, out io.Writer) *Bridge {
	return &Bridge{
		svc:    svc,
		in:     in,
		out:    out,
		logger: slog.Default().With("component", "facade-bridge"),
	}
}

// Run serves frames until the input closes or the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := b.readFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		resp := b.handle(ctx, req)
		if err := b.writeFrame(resp); err != nil {
			return err
		}
	}
}

func (b *Bridge) handle(ctx context.Context, req *BridgeRequest) *BridgeResponse {
	result, err := b.svc.Dispatch(ctx, req.Op, req.Payload)
	if err != nil {
		opErr := NewOpError(err)
		b.logger.Debug("bridge operation failed", "op", req.Op, "code", opErr.Code)
		return &BridgeResponse{OK: false, Error: &opErr}
	}
	return &BridgeResponse{OK: true, Result: result}
}

// readFrame reads one 4-byte little-endian length-prefixed JSON frame.
func (b *Bridge) readFrame() (*BridgeRequest, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(b.in, lenBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	frameLen := binary.LittleEndian.Uint32(lenBuf[:])
	if frameLen == 0 || frameLen > maxFrameSize {
		return nil, fmt.Errorf("invalid frame length %d", frameLen)
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(b.in, frame); err != nil {
		return nil, fmt.Errorf("reading frame body: %w", err)
	}

	var req BridgeRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return &req, nil
}

// writeFrame writes one length-prefixed JSON frame.
func (b *Bridge) writeFrame(resp *BridgeResponse) error {
	frame, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	if len(frame) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(frame))
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := b.out.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := b.out.Write(frame); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}
