// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Parameter blocks mirror the device-side structures byte for byte: fields
// in declaration order, floats as little-endian IEEE-754 binary32, flags as
// single bytes. Each block implements encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler.

// Pose is the Cartesian position and joint angles of the arm
type Pose struct {
	X, Y, Z, R float32
	JointAngle [JointCount]float32
}

// HomeParams is the homing target
type HomeParams struct {
	X, Y, Z, R float32
}

// HomeCmd triggers homing; the field is reserved by the firmware
type HomeCmd struct {
	Reserved uint32
}

// ResetPoseParams resets the real-time pose from angle sensors (Manual=false)
// or from the supplied arm angles (Manual=true)
type ResetPoseParams struct {
	Manual        bool
	RearArmAngle  float32
	FrontArmAngle float32
}

// JOGJointParams holds per-joint jog velocity and acceleration
type JOGJointParams struct {
	Velocity     [JointCount]float32
	Acceleration [JointCount]float32
}

// JOGCoordinateParams holds per-axis (x, y, z, r) jog velocity and acceleration
type JOGCoordinateParams struct {
	Velocity     [JointCount]float32
	Acceleration [JointCount]float32
}

// JOGCommonParams holds ratios shared by joint and coordinate jog
type JOGCommonParams struct {
	VelocityRatio     float32
	AccelerationRatio float32
}

// JOGCmd starts or stops a jog move
type JOGCmd struct {
	IsJoint bool
	Cmd     JOGCommand
}

// PTPJointParams holds per-joint point-to-point velocity and acceleration
type PTPJointParams struct {
	Velocity     [JointCount]float32
	Acceleration [JointCount]float32
}

// PTPCoordinateParams holds Cartesian point-to-point velocity and acceleration
type PTPCoordinateParams struct {
	XYZVelocity     float32
	RVelocity       float32
	XYZAcceleration float32
	RAcceleration   float32
}

// PTPJumpParams holds the lift height and ceiling of JUMP moves
type PTPJumpParams struct {
	JumpHeight float32
	ZLimit     float32
}

// PTPCommonParams holds ratios shared by all point-to-point modes
type PTPCommonParams struct {
	VelocityRatio     float32
	AccelerationRatio float32
}

// PTPCmd is a point-to-point move
type PTPCmd struct {
	Mode       PTPMode
	X, Y, Z, R float32
}

// CPParams configures continuous-path motion. Acc is the maximum actual
// acceleration in non-real-time mode and the interpolation period when
// RealTimeTrack is set; the firmware stores both in the same slot.
type CPParams struct {
	PlanAcc       float32
	JunctionVel   float32
	Acc           float32
	RealTimeTrack bool
}

// CPCmd is a continuous-path segment. Velocity doubles as laser power.
type CPCmd struct {
	Mode     CPMode
	X, Y, Z  float32
	Velocity float32
}

// WAITCmd pauses the queue
type WAITCmd struct {
	TimeoutMs uint32
}

// ArmAngleError is the static calibration offset of the arm angle sensors
type ArmAngleError struct {
	RearArmAngleError  float32
	FrontArmAngleError float32
}

// DeviceVersion is the firmware version triple
type DeviceVersion struct {
	Major, Minor, Revision uint8
}

func (v DeviceVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Revision)
}

// AlarmsState is the raw alarm bitfield; bit n is byte n/8, bit n%8
type AlarmsState [AlarmsSize]byte

// Bit reports whether alarm n is set
func (a AlarmsState) Bit(n int) bool {
	if n < 0 || n >= AlarmsSize*8 {
		return false
	}
	return a[n/8]&(1<<(uint(n)%8)) != 0
}

// Active returns the indices of all set alarm bits
func (a AlarmsState) Active() []int {
	var bits []int
	for n := 0; n < AlarmsSize*8; n++ {
		if a.Bit(n) {
			bits = append(bits, n)
		}
	}
	return bits
}

// Any reports whether any alarm is set
func (a AlarmsState) Any() bool {
	for _, b := range a {
		if b != 0 {
			return true
		}
	}
	return false
}

//////////////////////////////////////////////////////////////
// Binary layout
//////////////////////////////////////////////////////////////

type payloadWriter struct {
	buf []byte
}

func (w *payloadWriter) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *payloadWriter) flag(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *payloadWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *payloadWriter) f32(vs ...float32) {
	for _, v := range vs {
		w.u32(math.Float32bits(v))
	}
}

type payloadReader struct {
	buf []byte
	off int
}

func newPayloadReader(what string, data []byte, size int) (*payloadReader, error) {
	if len(data) < size {
		return nil, shortPayload(what, len(data), size)
	}
	return &payloadReader{buf: data}, nil
}

func (r *payloadReader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *payloadReader) flag() bool {
	return r.u8() != 0
}

func (r *payloadReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *payloadReader) f32(dst ...*float32) {
	for _, p := range dst {
		*p = math.Float32frombits(r.u32())
	}
}

func (r *payloadReader) f32s(dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(r.u32())
	}
}

// Pose: x, y, z, r, jointAngle[4]
func (p Pose) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 32)}
	w.f32(p.X, p.Y, p.Z, p.R)
	w.f32(p.JointAngle[:]...)
	return w.buf, nil
}

func (p *Pose) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("pose", data, 32)
	if err != nil {
		return err
	}
	r.f32(&p.X, &p.Y, &p.Z, &p.R)
	r.f32s(p.JointAngle[:])
	return nil
}

func (a AlarmsState) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), a[:]...), nil
}

func (a *AlarmsState) UnmarshalBinary(data []byte) error {
	if len(data) < AlarmsSize {
		return shortPayload("alarms", len(data), AlarmsSize)
	}
	copy(a[:], data)
	return nil
}

func (p HomeParams) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 16)}
	w.f32(p.X, p.Y, p.Z, p.R)
	return w.buf, nil
}

func (p *HomeParams) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("home params", data, 16)
	if err != nil {
		return err
	}
	r.f32(&p.X, &p.Y, &p.Z, &p.R)
	return nil
}

func (c HomeCmd) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 4)}
	w.u32(c.Reserved)
	return w.buf, nil
}

func (c *HomeCmd) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("home cmd", data, 4)
	if err != nil {
		return err
	}
	c.Reserved = r.u32()
	return nil
}

func (p ResetPoseParams) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 9)}
	w.flag(p.Manual)
	w.f32(p.RearArmAngle, p.FrontArmAngle)
	return w.buf, nil
}

func (p *ResetPoseParams) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("reset pose", data, 9)
	if err != nil {
		return err
	}
	p.Manual = r.flag()
	r.f32(&p.RearArmAngle, &p.FrontArmAngle)
	return nil
}

func marshalAxisParams(velocity, acceleration [JointCount]float32) []byte {
	w := payloadWriter{buf: make([]byte, 0, 32)}
	w.f32(velocity[:]...)
	w.f32(acceleration[:]...)
	return w.buf
}

func unmarshalAxisParams(what string, data []byte, velocity, acceleration []float32) error {
	r, err := newPayloadReader(what, data, 32)
	if err != nil {
		return err
	}
	r.f32s(velocity)
	r.f32s(acceleration)
	return nil
}

func (p JOGJointParams) MarshalBinary() ([]byte, error) {
	return marshalAxisParams(p.Velocity, p.Acceleration), nil
}

func (p *JOGJointParams) UnmarshalBinary(data []byte) error {
	return unmarshalAxisParams("jog joint params", data, p.Velocity[:], p.Acceleration[:])
}

func (p JOGCoordinateParams) MarshalBinary() ([]byte, error) {
	return marshalAxisParams(p.Velocity, p.Acceleration), nil
}

func (p *JOGCoordinateParams) UnmarshalBinary(data []byte) error {
	return unmarshalAxisParams("jog coordinate params", data, p.Velocity[:], p.Acceleration[:])
}

func (p PTPJointParams) MarshalBinary() ([]byte, error) {
	return marshalAxisParams(p.Velocity, p.Acceleration), nil
}

func (p *PTPJointParams) UnmarshalBinary(data []byte) error {
	return unmarshalAxisParams("ptp joint params", data, p.Velocity[:], p.Acceleration[:])
}

func marshalRatios(velocity, acceleration float32) []byte {
	w := payloadWriter{buf: make([]byte, 0, 8)}
	w.f32(velocity, acceleration)
	return w.buf
}

func (p JOGCommonParams) MarshalBinary() ([]byte, error) {
	return marshalRatios(p.VelocityRatio, p.AccelerationRatio), nil
}

func (p *JOGCommonParams) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("jog common params", data, 8)
	if err != nil {
		return err
	}
	r.f32(&p.VelocityRatio, &p.AccelerationRatio)
	return nil
}

func (p PTPCommonParams) MarshalBinary() ([]byte, error) {
	return marshalRatios(p.VelocityRatio, p.AccelerationRatio), nil
}

func (p *PTPCommonParams) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("ptp common params", data, 8)
	if err != nil {
		return err
	}
	r.f32(&p.VelocityRatio, &p.AccelerationRatio)
	return nil
}

func (c JOGCmd) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 2)}
	w.flag(c.IsJoint)
	w.u8(uint8(c.Cmd))
	return w.buf, nil
}

func (c *JOGCmd) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("jog cmd", data, 2)
	if err != nil {
		return err
	}
	c.IsJoint = r.flag()
	c.Cmd = JOGCommand(r.u8())
	return nil
}

func (p PTPCoordinateParams) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 16)}
	w.f32(p.XYZVelocity, p.RVelocity, p.XYZAcceleration, p.RAcceleration)
	return w.buf, nil
}

func (p *PTPCoordinateParams) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("ptp coordinate params", data, 16)
	if err != nil {
		return err
	}
	r.f32(&p.XYZVelocity, &p.RVelocity, &p.XYZAcceleration, &p.RAcceleration)
	return nil
}

func (p PTPJumpParams) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 8)}
	w.f32(p.JumpHeight, p.ZLimit)
	return w.buf, nil
}

func (p *PTPJumpParams) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("ptp jump params", data, 8)
	if err != nil {
		return err
	}
	r.f32(&p.JumpHeight, &p.ZLimit)
	return nil
}

// PTPCmd: mode byte, then x, y, z, r
func (c PTPCmd) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 17)}
	w.u8(uint8(c.Mode))
	w.f32(c.X, c.Y, c.Z, c.R)
	return w.buf, nil
}

func (c *PTPCmd) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("ptp cmd", data, 17)
	if err != nil {
		return err
	}
	c.Mode = PTPMode(r.u8())
	r.f32(&c.X, &c.Y, &c.Z, &c.R)
	return nil
}

func (p CPParams) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 13)}
	w.f32(p.PlanAcc, p.JunctionVel, p.Acc)
	w.flag(p.RealTimeTrack)
	return w.buf, nil
}

func (p *CPParams) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("cp params", data, 13)
	if err != nil {
		return err
	}
	r.f32(&p.PlanAcc, &p.JunctionVel, &p.Acc)
	p.RealTimeTrack = r.flag()
	return nil
}

func (c CPCmd) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 17)}
	w.u8(uint8(c.Mode))
	w.f32(c.X, c.Y, c.Z, c.Velocity)
	return w.buf, nil
}

func (c *CPCmd) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("cp cmd", data, 17)
	if err != nil {
		return err
	}
	c.Mode = CPMode(r.u8())
	r.f32(&c.X, &c.Y, &c.Z, &c.Velocity)
	return nil
}

func (c WAITCmd) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 4)}
	w.u32(c.TimeoutMs)
	return w.buf, nil
}

func (c *WAITCmd) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("wait cmd", data, 4)
	if err != nil {
		return err
	}
	c.TimeoutMs = r.u32()
	return nil
}

func (e ArmAngleError) MarshalBinary() ([]byte, error) {
	w := payloadWriter{buf: make([]byte, 0, 8)}
	w.f32(e.RearArmAngleError, e.FrontArmAngleError)
	return w.buf, nil
}

func (e *ArmAngleError) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("arm angle error", data, 8)
	if err != nil {
		return err
	}
	r.f32(&e.RearArmAngleError, &e.FrontArmAngleError)
	return nil
}

func (v DeviceVersion) MarshalBinary() ([]byte, error) {
	return []byte{v.Major, v.Minor, v.Revision}, nil
}

func (v *DeviceVersion) UnmarshalBinary(data []byte) error {
	r, err := newPayloadReader("device version", data, 3)
	if err != nil {
		return err
	}
	v.Major, v.Minor, v.Revision = r.u8(), r.u8(), r.u8()
	return nil
}

//////////////////////////////////////////////////////////////
// Scalar responses
//////////////////////////////////////////////////////////////

// ParseQueuedIndex decodes the 64-bit queue index returned by queued
// commands and GetQueuedCmdCurrentIndex
func ParseQueuedIndex(data []byte) (uint64, error) {
	if len(data) < QueuedIndexSize {
		return 0, shortPayload("queued index", len(data), QueuedIndexSize)
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ParseLeftSpace decodes the 32-bit free slot count of GetQueuedCmdLeftSpace
func ParseLeftSpace(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, shortPayload("left space", len(data), 4)
	}
	return binary.LittleEndian.Uint32(data), nil
}

// EncodeQueuedIndex is the inverse of ParseQueuedIndex
func EncodeQueuedIndex(idx uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, idx)
}

// EncodeLeftSpace is the inverse of ParseLeftSpace
func EncodeLeftSpace(n uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, n)
}

// ParseString decodes a device string response, dropping a trailing NUL
func ParseString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
