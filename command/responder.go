// Copyright 2020 Dan Julio
// This file is part of firecam.

package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/juju/ratelimit"

	"github.com/danjulio/firecam/notify"
	"github.com/danjulio/firecam/wifi"
)

// imageReady is the only event this package's notify.Set carries: the
// orchestrator has finished assembling the record requested by a
// pending get_image and copied it into the response buffer.
const imageReady notify.Event = 1

// Handlers is implemented by the orchestrator and supplies everything
// the responder needs to answer or act on a command. Every method
// runs on the connection-handling goroutine except DeliverImage,
// which the orchestrator calls from its own goroutine once an
// asynchronous get_image request completes.
type Handlers interface {
	// Status returns the current get_status payload.
	Status() StatusInfo
	// Config returns the current get_config payload.
	Config() ConfigInfo
	// SetConfig applies the non-nil fields of a set_config request.
	SetConfig(ConfigArgs)
	// Wifi returns the current Wi-Fi configuration for get_wifi.
	Wifi() wifi.Config
	// SetWifi applies the non-nil fields of a set_wifi request,
	// persists them and reinitialises Wi-Fi. An error here is logged
	// and otherwise swallowed: set_wifi never produces a response.
	SetWifi(WifiArgs) error
	// SetTime applies a fully-populated set_time request.
	SetTime(TimeArgs)
	// RequestImage asks the orchestrator to build a get_image
	// response and deliver it via DeliverImage on its next
	// top-of-second cycle.
	RequestImage()
	// RecordOn and RecordOff drive the recording state machine.
	RecordOn()
	RecordOff()
	// PowerOff begins the shutdown sequence.
	PowerOff()
}

// Responder is the single-connection TCP command listener. Only one
// client is served at a time; a second connection attempt blocks in
// Accept until the first disconnects.
type Responder struct {
	addr     string
	handlers Handlers

	violationLimit *ratelimit.Bucket

	imageMu    sync.Mutex
	imageBytes []byte
	imageSig   notify.Set

	readyMu sync.Mutex
	addrVal net.Addr
	ready   chan struct{}
}

// New returns a Responder that will listen on addr (":5001" in
// production) once Serve is called.
func New(addr string, h Handlers) *Responder {
	return &Responder{
		addr:     addr,
		handlers: h,
		// One log line per 5s of sustained protocol violations is
		// plenty to notice a misbehaving client without flooding the
		// log, mirroring throttle's use of the same library to cap a
		// different repeated event.
		violationLimit: ratelimit.NewBucketWithRate(0.2, 1),
		ready:          make(chan struct{}),
	}
}

// Addr blocks until Serve has bound its listening socket, then
// returns its address. Tests use this to dial a Responder started
// with the ":0" wildcard port.
func (r *Responder) Addr() net.Addr {
	<-r.ready
	r.readyMu.Lock()
	defer r.readyMu.Unlock()
	return r.addrVal
}

// DeliverImage supplies the framed get_image response bytes for a
// pending asynchronous request. It is safe to call even if no request
// is currently pending, in which case the bytes are held until the
// next get_image arrives (matching the original's single shared
// response buffer, which is always kept current).
func (r *Responder) DeliverImage(framed []byte) {
	r.imageMu.Lock()
	r.imageBytes = framed
	r.imageMu.Unlock()
	r.imageSig.Signal(imageReady)
}

// Serve accepts connections on addr until ctx is cancelled.
func (r *Responder) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("command: listen on %s: %w", r.addr, err)
	}
	defer ln.Close()

	r.readyMu.Lock()
	r.addrVal = ln.Addr()
	r.readyMu.Unlock()
	close(r.ready)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("command: accept: %w", err)
		}
		r.serveConn(ctx, conn)
	}
}

// serveConn handles one client to completion. Commands are processed
// serially in arrival order; this is a deliberate simplification of
// the original's single-connection assumption, which never needed to
// pipeline requests either.
func (r *Responder) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	fe := &FrameExtractor{}
	readBuf := make([]byte, 512)

	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			frames, violations := fe.Feed(readBuf[:n])
			for i := 0; i < violations; i++ {
				r.logViolation("oversized command JSON discarded")
			}
			for _, f := range frames {
				if !r.dispatch(ctx, conn, f) {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// dispatch decodes and executes one command frame, writing a response
// if the command calls for one. It returns false if the connection
// should be torn down (a send error).
func (r *Responder) dispatch(ctx context.Context, conn net.Conn, payload []byte) bool {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		r.logViolation("malformed command JSON: " + err.Error())
		return true
	}

	switch req.Cmd {
	case cmdGetStatus:
		return r.reply(conn, "status", r.renderStatus(r.handlers.Status()))

	case cmdGetConfig:
		return r.reply(conn, "config", r.handlers.Config())

	case cmdGetWifi:
		return r.reply(conn, "wifi", r.renderWifi(r.handlers.Wifi()))

	case cmdGetImage:
		return r.replyImage(ctx, conn)

	case cmdSetConfig:
		var args ConfigArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			r.logViolation("malformed set_config args: " + err.Error())
			return true
		}
		r.handlers.SetConfig(args)
		return true

	case cmdSetWifi:
		var args WifiArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			r.logViolation("malformed set_wifi args: " + err.Error())
			return true
		}
		if err := r.handlers.SetWifi(args); err != nil {
			log.Printf("command: set_wifi rejected: %v", err)
		}
		return true

	case cmdSetTime:
		var args TimeArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			r.logViolation("malformed set_time args: " + err.Error())
			return true
		}
		if !args.complete() {
			r.logViolation("incomplete set_time args")
			return true
		}
		r.handlers.SetTime(args)
		return true

	case cmdRecordOn:
		r.handlers.RecordOn()
		return true

	case cmdRecordOff:
		r.handlers.RecordOff()
		return true

	case cmdPoweroff:
		r.handlers.PowerOff()
		return true

	default:
		r.logViolation("unrecognised command: " + string(req.Cmd))
		return true
	}
}

// reply marshals v under key, frames it and sends it, chunked at
// maxTxChunk bytes.
func (r *Responder) reply(conn net.Conn, key string, v interface{}) bool {
	body, err := json.Marshal(map[string]interface{}{key: v})
	if err != nil {
		log.Printf("command: encoding %s response: %v", key, err)
		return true
	}
	return r.send(conn, frame(body))
}

// replyImage asks the orchestrator to build a get_image response and
// waits up to responseWait for it to arrive. On timeout the request
// is dropped with a warning and no response is sent, per the
// asynchronous response deadline.
func (r *Responder) replyImage(ctx context.Context, conn net.Conn) bool {
	r.handlers.RequestImage()

	bits := r.imageSig.WaitTimeout(responseWait)
	if !notify.Has(bits, imageReady) {
		log.Print("command: get_image timed out waiting for response")
		return true
	}

	r.imageMu.Lock()
	framed := r.imageBytes
	r.imageMu.Unlock()
	return r.send(conn, framed)
}

// send writes data to conn in maxTxChunk-sized pieces. A send error
// tears down the connection, matching the original's return-to-accept
// behaviour.
func (r *Responder) send(conn net.Conn, data []byte) bool {
	for len(data) > 0 {
		n := len(data)
		if n > maxTxChunk {
			n = maxTxChunk
		}
		if _, err := conn.Write(data[:n]); err != nil {
			log.Printf("command: send failed, closing connection: %v", err)
			return false
		}
		data = data[n:]
	}
	return true
}

// logViolation logs a protocol violation, throttled so a client
// hammering the socket with garbage can't flood the log.
func (r *Responder) logViolation(msg string) {
	if r.violationLimit.TakeAvailable(1) > 0 {
		log.Print("command: protocol violation: " + msg)
	}
}

func (r *Responder) renderStatus(s StatusInfo) statusWire {
	recording := 0
	if s.Recording {
		recording = 1
	}
	return statusWire{
		Camera:    s.Camera,
		Version:   s.Version,
		Recording: recording,
		Time:      fmt.Sprintf("%d:%02d:%02d", s.Now.Hour, s.Now.Minute, s.Now.Second),
		Date:      fmt.Sprintf("%d/%d/%02d", s.Now.Month, s.Now.Day, (1970+int(s.Now.Year))%100),
		Battery:   s.Battery,
		Charge:    s.Charge,
	}
}

func (r *Responder) renderWifi(c wifi.Config) WifiStatus {
	return WifiStatus{
		APSSID:  c.APSSID,
		STASSID: c.STASSID,
		Flags:   c.Flags,
		APIP:    wifi.RenderIP(c.APIP),
		STAIP:   wifi.RenderIP(c.STAIP),
		CurIP:   wifi.RenderIP(c.CurIP),
	}
}
