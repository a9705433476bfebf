// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim is a simulated arm that speaks the wire protocol. It answers
// status queries, stores parameter blocks and executes its command queue on
// a timer, which is enough to drive the whole driver stack without hardware.
package sim

import (
	"encoding"
	"errors"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/dobot"
)

// Defaults for a new Device
const (
	DefaultExecDelay     = 10 * time.Millisecond
	DefaultQueueCapacity = 32
)

type queuedCmd struct {
	index uint64
	frame *dobot.Frame
}

// Device simulates one arm. A Device can serve one connection at a time.
type Device struct {
	mu sync.Mutex

	serial  string
	name    string
	version dobot.DeviceVersion
	pose    dobot.Pose
	alarms  dobot.AlarmsState
	params  map[dobot.CommandID][]byte

	queue     []queuedCmd
	lastIndex uint64 // index handed to the most recent queued command
	current   uint64 // index of the most recently executed command
	running   bool
	capacity  int
	execDelay time.Duration

	noiseRate float64
	rng       *rand.Rand
	silent    map[dobot.CommandID]bool

	writeMu sync.Mutex
	logger  *zap.Logger
}

// Option configures a Device
type Option func(*Device)

// WithPose sets the initial pose
func WithPose(p dobot.Pose) Option {
	return func(d *Device) { d.pose = p }
}

// WithAlarms sets the initial alarm bits
func WithAlarms(a dobot.AlarmsState) Option {
	return func(d *Device) { d.alarms = a }
}

// WithExecDelay sets how long each queued command takes to execute
func WithExecDelay(delay time.Duration) Option {
	return func(d *Device) {
		if delay > 0 {
			d.execDelay = delay
		}
	}
}

// WithQueueCapacity sets the number of queue slots
func WithQueueCapacity(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.capacity = n
		}
	}
}

// WithNoise prefixes each response with a garbage byte at the given rate
// (0..1). The sequence is reproducible for a given seed.
func WithNoise(rate float64, seed int64) Option {
	return func(d *Device) {
		d.noiseRate = rate
		d.rng = rand.New(rand.NewSource(seed))
	}
}

// WithSilentCommands makes the device swallow requests for the given ids
func WithSilentCommands(ids ...dobot.CommandID) Option {
	return func(d *Device) {
		for _, id := range ids {
			d.silent[id] = true
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger.Named("sim")
		}
	}
}

// New creates a simulated device in its power-on state with queue
// execution enabled.
func New(opts ...Option) *Device {
	d := &Device{
		serial:    "SIM-0001",
		name:      "magician-sim",
		version:   dobot.DeviceVersion{Major: 3, Minor: 7, Revision: 0},
		params:    defaultParams(),
		running:   true,
		capacity:  DefaultQueueCapacity,
		execDelay: DefaultExecDelay,
		silent:    make(map[dobot.CommandID]bool),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func defaultParams() map[dobot.CommandID][]byte {
	blocks := map[dobot.CommandID]encoding.BinaryMarshaler{
		dobot.CmdHomeParams:             dobot.HomeParams{X: 200, Y: 0, Z: 0, R: 0},
		dobot.CmdJOGJointParams:         dobot.JOGJointParams{Velocity: [4]float32{15, 15, 15, 30}, Acceleration: [4]float32{50, 50, 50, 50}},
		dobot.CmdJOGCoordinateParams:    dobot.JOGCoordinateParams{Velocity: [4]float32{60, 60, 60, 60}, Acceleration: [4]float32{60, 60, 60, 60}},
		dobot.CmdJOGCommonParams:        dobot.JOGCommonParams{VelocityRatio: 50, AccelerationRatio: 50},
		dobot.CmdPTPJointParams:         dobot.PTPJointParams{Velocity: [4]float32{200, 200, 200, 200}, Acceleration: [4]float32{200, 200, 200, 200}},
		dobot.CmdPTPCoordinateParams:    dobot.PTPCoordinateParams{XYZVelocity: 200, RVelocity: 200, XYZAcceleration: 200, RAcceleration: 200},
		dobot.CmdPTPJumpParams:          dobot.PTPJumpParams{JumpHeight: 20, ZLimit: 100},
		dobot.CmdPTPCommonParams:        dobot.PTPCommonParams{VelocityRatio: 50, AccelerationRatio: 50},
		dobot.CmdCPParams:               dobot.CPParams{PlanAcc: 100, JunctionVel: 50, Acc: 100},
		dobot.CmdAngleSensorStaticError: dobot.ArmAngleError{},
	}

	params := make(map[dobot.CommandID][]byte, len(blocks))
	for id, b := range blocks {
		params[id], _ = b.MarshalBinary()
	}
	return params
}

// Pipe returns the host end of an in-memory link to the device and starts
// serving the other end.
func (d *Device) Pipe() net.Conn {
	host, dev := net.Pipe()
	go d.Serve(dev)
	return host
}

// Serve answers requests on conn until it fails or closes.
func (d *Device) Serve(conn io.ReadWriteCloser) error {
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go d.execLoop(stop)

	decoder := dobot.NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			for {
				frame, ferr := decoder.Next()
				if ferr != nil {
					d.logger.Debug("discarding corrupt byte", zap.Error(ferr))
					continue
				}
				if frame == nil {
					break
				}
				if resp := d.Handle(frame); resp != nil {
					if werr := d.write(conn, resp); werr != nil {
						return werr
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
	}
}

func (d *Device) write(conn io.Writer, f *dobot.Frame) error {
	wire, err := dobot.EncodeFrame(f)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if d.rng != nil && d.rng.Float64() < d.noiseRate {
		// Noise stays below the sync byte so it never starts a frame
		wire = append([]byte{byte(d.rng.Intn(dobot.SyncByte))}, wire...)
	}
	d.mu.Unlock()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_, err = conn.Write(wire)
	return err
}

// Handle computes the response to one request, or nil when the device stays
// silent.
func (d *Device) Handle(req *dobot.Frame) *dobot.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.silent[req.ID] {
		return nil
	}

	if req.Queued {
		if !req.Write || len(d.queue) >= d.capacity {
			return nil
		}
		d.lastIndex++
		d.queue = append(d.queue, queuedCmd{index: d.lastIndex, frame: req})
		d.logger.Debug("queued", zap.Stringer("command", req.ID), zap.Uint64("index", d.lastIndex))
		return reply(req, dobot.EncodeQueuedIndex(d.lastIndex))
	}

	if req.Write {
		if !d.applyImmediate(req) {
			return nil
		}
		return reply(req, nil)
	}

	payload, ok := d.read(req.ID)
	if !ok {
		return nil
	}
	return reply(req, payload)
}

func reply(req *dobot.Frame, payload []byte) *dobot.Frame {
	return dobot.NewFrame(req.ID, req.Queued, req.Write, payload)
}

func (d *Device) read(id dobot.CommandID) ([]byte, bool) {
	switch id {
	case dobot.CmdDeviceSN:
		return []byte(d.serial), true
	case dobot.CmdDeviceName:
		return []byte(d.name), true
	case dobot.CmdDeviceVersion:
		b, _ := d.version.MarshalBinary()
		return b, true
	case dobot.CmdGetPose:
		b, _ := d.pose.MarshalBinary()
		return b, true
	case dobot.CmdGetAlarms:
		b, _ := d.alarms.MarshalBinary()
		return b, true
	case dobot.CmdGetQueuedCmdCurrentIndex:
		return dobot.EncodeQueuedIndex(d.current), true
	case dobot.CmdGetQueuedCmdLeftSpace:
		return dobot.EncodeLeftSpace(uint32(d.capacity - len(d.queue))), true
	}
	if block, ok := d.params[id]; ok {
		return append([]byte(nil), block...), true
	}
	return nil, false
}

func (d *Device) applyImmediate(req *dobot.Frame) bool {
	switch req.ID {
	case dobot.CmdDeviceName:
		d.name = dobot.ParseString(req.Payload)
	case dobot.CmdResetPose:
		var p dobot.ResetPoseParams
		if p.UnmarshalBinary(req.Payload) != nil {
			return false
		}
		if p.Manual {
			d.pose.JointAngle[1] = p.RearArmAngle
			d.pose.JointAngle[2] = p.FrontArmAngle
		}
	case dobot.CmdClearAllAlarmsState:
		d.alarms = dobot.AlarmsState{}
	case dobot.CmdQueuedCmdStartExec:
		d.running = true
	case dobot.CmdQueuedCmdStopExec, dobot.CmdQueuedCmdForceStopExec:
		d.running = false
	case dobot.CmdQueuedCmdClear:
		d.queue = nil
		d.lastIndex = 0
		d.current = 0
	case dobot.CmdQueuedCmdStartDownload, dobot.CmdQueuedCmdStopDownload:
	default:
		return d.storeParams(req)
	}
	return true
}

func (d *Device) storeParams(req *dobot.Frame) bool {
	block, ok := d.params[req.ID]
	if !ok || len(req.Payload) != len(block) {
		return false
	}
	d.params[req.ID] = append([]byte(nil), req.Payload...)
	return true
}

func (d *Device) execLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(d.execDelay)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.step()
		}
	}
}

// step executes the head of the queue if execution is enabled.
func (d *Device) step() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || len(d.queue) == 0 {
		return
	}
	cmd := d.queue[0]
	d.queue = d.queue[1:]
	d.execute(cmd.frame)
	d.current = cmd.index
}

func (d *Device) execute(f *dobot.Frame) {
	switch f.ID {
	case dobot.CmdPTPCmd:
		var c dobot.PTPCmd
		if c.UnmarshalBinary(f.Payload) == nil {
			d.movePTP(c)
		}
	case dobot.CmdCPCmd:
		var c dobot.CPCmd
		if c.UnmarshalBinary(f.Payload) == nil {
			if c.Mode == dobot.CPRelative {
				d.pose.X += c.X
				d.pose.Y += c.Y
				d.pose.Z += c.Z
			} else {
				d.pose.X, d.pose.Y, d.pose.Z = c.X, c.Y, c.Z
			}
		}
	case dobot.CmdHomeCmd:
		var h dobot.HomeParams
		if h.UnmarshalBinary(d.params[dobot.CmdHomeParams]) == nil {
			d.pose.X, d.pose.Y, d.pose.Z, d.pose.R = h.X, h.Y, h.Z, h.R
		}
	case dobot.CmdWAITCmd, dobot.CmdJOGCmd:
	default:
		d.storeParams(f)
	}
}

func (d *Device) movePTP(c dobot.PTPCmd) {
	switch c.Mode {
	case dobot.JumpXYZ, dobot.MovJXYZ, dobot.MovLXYZ, dobot.JumpMovLXYZ:
		d.pose.X, d.pose.Y, d.pose.Z, d.pose.R = c.X, c.Y, c.Z, c.R
	case dobot.MovLInc, dobot.MovJXYZInc:
		d.pose.X += c.X
		d.pose.Y += c.Y
		d.pose.Z += c.Z
		d.pose.R += c.R
	case dobot.JumpAngle, dobot.MovJAngle, dobot.MovLAngle:
		d.pose.JointAngle = [4]float32{c.X, c.Y, c.Z, c.R}
	case dobot.MovJInc:
		d.pose.JointAngle[0] += c.X
		d.pose.JointAngle[1] += c.Y
		d.pose.JointAngle[2] += c.Z
		d.pose.JointAngle[3] += c.R
	}
}

// SetAlarm raises alarm bit n, as a firmware fault would
func (d *Device) SetAlarm(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n >= 0 && n < dobot.AlarmsSize*8 {
		d.alarms[n/8] |= 1 << (uint(n) % 8)
	}
}

// Pose returns the simulated pose
func (d *Device) Pose() dobot.Pose {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pose
}

// QueueIndex returns the last assigned and the last executed queue index
func (d *Device) QueueIndex() (assigned, executed uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastIndex, d.current
}
