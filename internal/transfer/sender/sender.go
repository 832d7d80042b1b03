// Package sender implements the Sender state machine: open the source
// file, send metadata, then loop chunk-by-chunk through the incremental
// sub-exchange, optional compression, framing, and the control-channel
// ack/retry protocol, adapting chunk size as it goes.
package sender

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/alxayo/go-xfer/internal/bufpool"
	xferrors "github.com/alxayo/go-xfer/internal/errors"
	"github.com/alxayo/go-xfer/internal/logger"
	"github.com/alxayo/go-xfer/internal/transfer/chunker"
	"github.com/alxayo/go-xfer/internal/transfer/codec"
	"github.com/alxayo/go-xfer/internal/transfer/compress"
	"github.com/alxayo/go-xfer/internal/transfer/control"
	"github.com/alxayo/go-xfer/internal/transfer/incremental"
	"github.com/alxayo/go-xfer/internal/transfer/netio"
)

const (
	// metadataImmediateRetries bounds back-to-back resends on a checksum
	// rejection of the metadata packet.
	metadataImmediateRetries = 5
	// overallRetryBudget bounds total attempts for any single exchange
	// (metadata, incremental query, or data chunk ack).
	overallRetryBudget = 20
	// retryBackoff is the fixed sleep between retries that are not
	// immediate checksum resends.
	retryBackoff = 1 * time.Second
	// initialChunkSize is the budget (payload+framing) used for the first
	// data chunk and advertised as the metadata packet's chunk size hint.
	initialChunkSize = chunker.MinChunk
)

// Config configures one outbound transfer.
type Config struct {
	SourcePath  string
	DestPath    string // destination path on the receiver, as sent in metadata
	DataAddr    string // receiver's UDP data-channel address
	ControlAddr string // receiver's TCP control-channel address
	Compress    bool
}

// Sender drives one file transfer to completion.
type Sender struct {
	cfg Config
	log *slog.Logger

	data net.Conn // UDP "connected" socket to the receiver
	ctrl *control.Conn

	srcFile   *os.File
	totalSize int64
	srcPos    int64

	seq          int32
	current      int // this round's payload+framing budget
	lastSpeedKiB float64
	lastDuration time.Duration

	incremental            bool
	incrementalQueriesSent int

	pool *bufpool.Pool
}

// New opens the source file and prepares a Sender; it does not yet touch
// the network.
func New(cfg Config) (*Sender, error) {
	f, err := os.Open(cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	return &Sender{
		cfg:       cfg,
		log:       logger.Logger().With("component", "sender"),
		srcFile:   f,
		totalSize: info.Size(),
		seq:       1,
		current:   initialChunkSize,
		// Incremental mode is requested by the sender only implicitly: the
		// receiver is the side that knows whether the destination already
		// exists, so the sub-exchange always starts active and the
		// receiver's "NEW FILE !" reply is what turns it off.
		incremental: true,
		pool:        bufpool.New(),
	}, nil
}

// Connect dials the data and control channels.
func (s *Sender) Connect() error {
	data, err := netio.DialData(s.cfg.DataAddr)
	if err != nil {
		return err
	}
	ctrl, err := netio.DialControl(s.cfg.ControlAddr)
	if err != nil {
		data.Close()
		return err
	}
	s.data = data
	s.ctrl = control.New(ctrl)
	s.log = logger.WithTransfer(s.log, "sender", s.cfg.DataAddr)
	return nil
}

// Close releases both sockets and the source file.
func (s *Sender) Close() {
	if s.data != nil {
		s.data.Close()
	}
	if s.ctrl != nil {
		s.ctrl.Close()
	}
	if s.srcFile != nil {
		s.srcFile.Close()
	}
}

// Run executes the full transfer: metadata handshake, main loop, and
// end-of-transfer.
func (s *Sender) Run() error {
	if err := s.sendMetadata(); err != nil {
		return err
	}
	for s.srcPos < s.totalSize {
		if err := s.sendNextChunk(); err != nil {
			return err
		}
	}
	if _, err := s.data.Write(codec.BuildEndPacket()); err != nil {
		return fmt.Errorf("send end-of-transfer: %w", err)
	}
	return nil
}

// sendMetadata builds and sends the metadata packet, retrying on checksum
// rejection (bounded immediately) and on timeout/any other status (bounded
// overall), and aborting with a *xferrors.PathError if the receiver reports
// a missing destination prefix.
func (s *Sender) sendMetadata() error {
	pkt := codec.BuildMetadataPacket(s.cfg.DestPath, uint32(s.current), s.cfg.Compress)
	immediate := 0
	overall := 0
	for {
		if _, err := s.data.Write(pkt); err != nil {
			return fmt.Errorf("send metadata: %w", err)
		}
		msg, err := s.ctrl.Receive()
		if err != nil {
			overall++
			if overall >= overallRetryBudget {
				return xferrors.NewControlError("sender.metadata", err)
			}
			time.Sleep(retryBackoff)
			continue
		}
		switch msg.Kind {
		case control.KindAck:
			if msg.Seq == codec.SeqMetadata {
				return nil
			}
		case control.KindIncorrectCRC:
			immediate++
			if immediate >= metadataImmediateRetries {
				return xferrors.NewChecksumError("sender.metadata", nil)
			}
			continue
		case control.KindPathError:
			return xferrors.NewPathError(msg.PathComponent, nil)
		}
		overall++
		if overall >= overallRetryBudget {
			return xferrors.NewControlError("sender.metadata", nil)
		}
		time.Sleep(retryBackoff)
	}
}

// sendNextChunk fills one chunk-sized window from the source file, runs the
// incremental sub-exchange if still active, then either skips or sends the
// chunk, recomputing the next chunk size as it commits.
func (s *Sender) sendNextChunk() error {
	payloadCap := s.current - codec.MinPacketSize
	if payloadCap <= 0 {
		payloadCap = chunker.MinChunk - codec.MinPacketSize
	}
	remaining := s.totalSize - s.srcPos
	if int64(payloadCap) > remaining {
		payloadCap = int(remaining)
	}
	window := s.pool.Get(payloadCap)
	defer s.pool.Put(window)
	if _, err := io.ReadFull(s.srcFile, window); err != nil {
		return fmt.Errorf("read source chunk: %w", err)
	}

	if s.incremental {
		skip, err := s.incrementalQuery(window)
		if err != nil {
			return err
		}
		if skip {
			s.srcPos += int64(len(window))
			return nil
		}
	}

	payload := window
	if s.cfg.Compress {
		compressed, err := compress.Compress(window, s.current)
		if err != nil {
			return err
		}
		payload = compressed
	}

	plannedNext := chunker.Next(s.current, s.lastSpeedKiB, s.lastDuration)
	pkt := codec.BuildDataPacket(s.seq, uint32(plannedNext), payload)

	start := time.Now()
	if err := s.sendAndAwaitAck(pkt, s.seq); err != nil {
		return err
	}
	elapsed := time.Since(start)

	speedKiB := 0.0
	if elapsed > 0 {
		speedKiB = (float64(len(window)) / 1024) / elapsed.Seconds()
	}

	s.srcPos += int64(len(window))
	s.seq++
	s.current = plannedNext
	s.lastSpeedKiB = speedKiB
	s.lastDuration = elapsed
	return nil
}

// incrementalQuery runs the DATA_CRC sub-exchange for one chunk window. It
// returns skip=true when the receiver already holds these bytes.
func (s *Sender) incrementalQuery(window []byte) (skip bool, err error) {
	query := incremental.FormatQuery(window)
	retries := 0
	for {
		if _, err := s.data.Write(query); err != nil {
			return false, fmt.Errorf("send incremental query: %w", err)
		}
		msg, err := s.ctrl.Receive()
		if err != nil {
			retries++
			if retries >= overallRetryBudget {
				return false, xferrors.NewControlError("sender.incremental", err)
			}
			time.Sleep(retryBackoff)
			continue
		}
		switch msg.Kind {
		case control.KindNot:
			return true, nil
		case control.KindNewFile:
			s.incremental = false
			return false, nil
		default:
			// Any other reply, including a numeric ack, means proceed to
			// send the payload.
			return false, nil
		}
	}
}

// sendAndAwaitAck sends pkt and waits for its numeric ack, resending on
// checksum/decompression rejection or timeout up to overallRetryBudget
// attempts total.
func (s *Sender) sendAndAwaitAck(pkt []byte, seq int32) error {
	attempts := 0
	for {
		if _, err := s.data.Write(pkt); err != nil {
			return fmt.Errorf("send chunk %d: %w", seq, err)
		}
		msg, err := s.ctrl.Receive()
		if err != nil {
			attempts++
			if attempts >= overallRetryBudget {
				return xferrors.NewControlError("sender.chunk", err)
			}
			time.Sleep(retryBackoff)
			continue
		}
		switch msg.Kind {
		case control.KindAck:
			if msg.Seq == seq {
				return nil
			}
		case control.KindIncorrectCRC, control.KindFailedDecompression:
			attempts++
			if attempts >= overallRetryBudget {
				if msg.Kind == control.KindIncorrectCRC {
					return xferrors.NewChecksumError("sender.chunk", nil)
				}
				return xferrors.NewDecompressionError("sender.chunk", nil)
			}
			time.Sleep(retryBackoff)
			continue
		case control.KindPathError:
			return xferrors.NewPathError(msg.PathComponent, nil)
		}
		attempts++
		if attempts >= overallRetryBudget {
			return xferrors.NewControlError("sender.chunk", nil)
		}
		time.Sleep(retryBackoff)
	}
}
