// Package receiver implements the Receiver state machine:
// accept the control connection, bind the data socket, validate the
// destination path from the metadata packet, then dispatch each inbound
// datagram as an incremental query, a data packet, or the end-of-transfer
// marker.
package receiver

import (
	"io"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/alxayo/go-xfer/internal/bufpool"
	xferrors "github.com/alxayo/go-xfer/internal/errors"
	"github.com/alxayo/go-xfer/internal/logger"
	"github.com/alxayo/go-xfer/internal/transfer/codec"
	"github.com/alxayo/go-xfer/internal/transfer/compress"
	"github.com/alxayo/go-xfer/internal/transfer/control"
	"github.com/alxayo/go-xfer/internal/transfer/incremental"
	"github.com/alxayo/go-xfer/internal/transfer/netio"
)

// Config configures one inbound transfer listener.
type Config struct {
	DataAddr    string // local bind address for the UDP data channel
	ControlAddr string // local bind address for the TCP control channel
}

// Receiver accepts a single transfer and then exits.
type Receiver struct {
	cfg Config
	log *slog.Logger

	dataConn *net.UDPConn
	peerAddr *net.UDPAddr
	ctrlLn   net.Listener
	ctrl     *control.Conn

	destPath     string
	destFile     *os.File
	destPos      int64
	compress     bool
	incremental  bool
	newFileSent  bool
	nextSizeHint uint32

	seenSeq map[int32]struct{}
	pool    *bufpool.Pool
}

// New prepares a Receiver; it does not yet touch the network.
func New(cfg Config) *Receiver {
	return &Receiver{
		cfg:     cfg,
		log:     logger.Logger().With("component", "receiver"),
		seenSeq: make(map[int32]struct{}),
		pool:    bufpool.New(),
	}
}

// Listen binds both channels without accepting the sender yet, so a caller
// can read back the actual bound addresses (useful when Config uses an
// ephemeral ":0" port).
func (r *Receiver) Listen() error {
	dataConn, err := netio.ListenData(r.cfg.DataAddr)
	if err != nil {
		return err
	}
	r.dataConn = dataConn

	ctrlLn, err := netio.ListenControl(r.cfg.ControlAddr)
	if err != nil {
		r.dataConn.Close()
		return err
	}
	r.ctrlLn = ctrlLn
	return nil
}

// Close closes both channels, unblocking any Serve call in progress. Safe to
// call from a separate goroutine handling a shutdown signal.
func (r *Receiver) Close() {
	if r.dataConn != nil {
		r.dataConn.Close()
	}
	if r.ctrlLn != nil {
		r.ctrlLn.Close()
	}
}

// DataAddr returns the bound UDP data-channel address. Valid after Listen.
func (r *Receiver) DataAddr() string { return r.dataConn.LocalAddr().String() }

// ControlAddr returns the bound TCP control-channel address. Valid after
// Listen.
func (r *Receiver) ControlAddr() string { return r.ctrlLn.Addr().String() }

// Run binds both channels, accepts the sender, and serves one transfer to
// completion.
func (r *Receiver) Run() error {
	if err := r.Listen(); err != nil {
		return err
	}
	return r.Serve()
}

// Serve accepts one sender on the already-bound channels and serves the
// transfer to completion.
func (r *Receiver) Serve() error {
	defer r.dataConn.Close()
	defer r.ctrlLn.Close()

	nc, err := netio.AcceptControl(r.ctrlLn)
	if err != nil {
		return err
	}
	r.ctrl = control.New(nc)
	defer r.ctrl.Close()

	if err := chdirHome(); err != nil {
		r.log.Warn("could not change to home directory", "err", err)
	}

	accepted, err := r.awaitMetadata()
	if err != nil {
		return err
	}
	if !accepted {
		// The destination path was rejected and the peer has already been
		// told which component is missing; there is nothing left to serve.
		return nil
	}
	defer r.destFile.Close()

	buf := r.pool.Get(int(r.nextSizeHint) + 1024)
	for {
		n, raddr, err := r.dataConn.ReadFromUDP(buf)
		if err != nil {
			return xferrors.NewControlError("receiver.readData", err)
		}
		if r.peerAddr == nil {
			r.peerAddr = raddr
			r.log = logger.WithTransfer(r.log, "receiver", raddr.String())
		}
		datagram := append([]byte(nil), buf[:n]...)

		if codec.IsEndPacket(datagram) {
			return nil
		}
		if incremental.IsQuery(datagram) {
			if err := r.handleIncrementalQuery(datagram); err != nil {
				return err
			}
		} else if err := r.handleDataPacket(datagram); err != nil {
			return err
		}

		r.pool.Put(buf)
		buf = r.pool.Get(int(r.nextSizeHint) + 1024)
	}
}

// awaitMetadata waits for the seq=0 metadata packet, validates the
// destination path, decides whether to run in incremental mode, and acks or
// rejects. accepted is false only when the destination was rejected and the
// peer has already been told which component is missing; err is non-nil
// only on a genuine transport failure.
func (r *Receiver) awaitMetadata() (accepted bool, err error) {
	buf := r.pool.Get(65536)
	for {
		n, raddr, err := r.dataConn.ReadFromUDP(buf)
		if err != nil {
			return false, xferrors.NewControlError("receiver.awaitMetadata", err)
		}
		r.peerAddr = raddr
		pkt, err := codec.ParseAndVerify(buf[:n])
		if err != nil {
			if sendErr := r.ctrl.Send(control.IncorrectCRC); sendErr != nil {
				return false, sendErr
			}
			continue
		}
		if pkt.Seq != codec.SeqMetadata {
			// Not the packet we're waiting for; ignore and keep listening.
			continue
		}
		destPath, wantCompress, err := codec.ParseMetadataPayload(pkt.Payload)
		if err != nil {
			if sendErr := r.ctrl.Send(control.IncorrectCRC); sendErr != nil {
				return false, sendErr
			}
			continue
		}
		if missing, ok := validateDestPath(destPath); !ok {
			return false, r.ctrl.Send(missing)
		}

		r.destPath = destPath
		r.compress = wantCompress
		r.nextSizeHint = pkt.NextSize
		r.incremental = fileExists(destPath)

		f, openErr := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE, 0o644)
		if openErr != nil {
			return false, r.ctrl.Send(filepath.Base(destPath))
		}
		r.destFile = f

		return true, r.ctrl.SendAck(codec.SeqMetadata)
	}
}

// handleIncrementalQuery answers one DATA_CRC probe by comparing the
// sender's hash against the corresponding window already on disk. The
// sender truncates its final window to whatever source bytes remain, so the
// receiver must compare against the same truncated window rather than
// insisting on a full nextSizeHint-sized read; "NEW FILE !" is reserved for
// when the destination has genuinely run out of bytes to compare (destPos
// at or past its own EOF).
func (r *Receiver) handleIncrementalQuery(datagram []byte) error {
	sum, err := incremental.ParseQuery(datagram)
	if err != nil {
		return r.ctrl.Send(control.Not)
	}
	if !r.incremental || r.newFileSent {
		return r.ctrl.Send(control.NewFile)
	}

	info, err := r.destFile.Stat()
	if err != nil || r.destPos >= info.Size() {
		r.incremental = false
		r.newFileSent = true
		return r.ctrl.Send(control.NewFile)
	}

	windowLen := int(r.nextSizeHint) - codec.MinPacketSize
	if windowLen <= 0 {
		r.incremental = false
		r.newFileSent = true
		return r.ctrl.Send(control.NewFile)
	}
	if remaining := info.Size() - r.destPos; int64(windowLen) > remaining {
		windowLen = int(remaining)
	}
	window := make([]byte, windowLen)
	n, err := r.destFile.ReadAt(window, r.destPos)
	if err != nil && err != io.EOF {
		r.incremental = false
		r.newFileSent = true
		return r.ctrl.Send(control.NewFile)
	}
	if incremental.Matches(window[:n], sum) {
		r.destPos += int64(n)
		return r.ctrl.Send(control.Not)
	}
	// Mismatch: destPos stays at the window's start, so the chunk the sender
	// sends next is written over exactly this window.
	return r.ctrl.Send(control.Send)
}

// handleDataPacket verifies, optionally decompresses, writes, and acks one
// data packet, deduplicating by sequence number.
func (r *Receiver) handleDataPacket(datagram []byte) error {
	pkt, err := codec.ParseAndVerify(datagram)
	if err != nil {
		return r.ctrl.Send(control.IncorrectCRC)
	}
	if pkt.Seq == codec.SeqMetadata {
		// A retransmitted metadata packet: the destination is already open
		// and positioned, so just re-ack without touching the file.
		return r.ctrl.SendAck(codec.SeqMetadata)
	}
	r.nextSizeHint = pkt.NextSize

	if _, dup := r.seenSeq[pkt.Seq]; dup {
		return r.ctrl.SendAck(pkt.Seq)
	}

	payload := pkt.Payload
	if r.compress {
		decompressed, err := compress.Decompress(payload)
		if err != nil {
			return r.ctrl.Send(control.FailedDecompression)
		}
		payload = decompressed
	}

	if _, err := r.destFile.WriteAt(payload, r.destPos); err != nil {
		return xferrors.NewControlError("receiver.write", err)
	}
	r.destPos += int64(len(payload))
	r.seenSeq[pkt.Seq] = struct{}{}
	return r.ctrl.SendAck(pkt.Seq)
}

// validateDestPath walks destPath's directory prefix, rejecting any ".."
// component outright and reporting the first missing directory component by
// name. It never creates directories: only the final file may be new.
//
// The walk works on the raw, unescaped path components rather than going
// through filepath.Dir/Join: both silently Clean "/../" segments away, which
// would make a ".." component impossible to ever observe.
func validateDestPath(destPath string) (missing string, ok bool) {
	slash := filepath.ToSlash(destPath)
	parts := strings.Split(slash, "/")
	if len(parts) > 0 {
		parts = parts[:len(parts)-1] // drop the file name itself
	}

	cur := ""
	if strings.HasPrefix(slash, "/") {
		cur = "/"
	}
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			return part, false
		}
		if cur == "" || cur == "/" {
			cur += part
		} else {
			cur += "/" + part
		}
		info, err := os.Stat(filepath.FromSlash(cur))
		if err != nil || !info.IsDir() {
			return part, false
		}
	}
	return "", true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// chdirHome changes to the invoking user's home directory, looked up via the
// password database, so relative destination paths resolve the way a
// logged-in user's shell would.
func chdirHome() error {
	u, err := user.Current()
	if err != nil {
		return err
	}
	return os.Chdir(u.HomeDir)
}
