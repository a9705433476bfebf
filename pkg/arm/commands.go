// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package arm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/magician/pkg/dobot"
	"github.com/Thermoquad/magician/pkg/link"
	"github.com/Thermoquad/magician/pkg/poller"
	"github.com/Thermoquad/magician/pkg/state"
)

//////////////////////////////////////////////////////////////
// Device information
//////////////////////////////////////////////////////////////

// DeviceSN reads the serial number
func (a *Arm) DeviceSN(ctx context.Context) (string, error) {
	return a.readString(ctx, dobot.CmdDeviceSN)
}

// DeviceName reads the user-assigned device name
func (a *Arm) DeviceName(ctx context.Context) (string, error) {
	return a.readString(ctx, dobot.CmdDeviceName)
}

// SetDeviceName stores a new device name
func (a *Arm) SetDeviceName(ctx context.Context, name string) error {
	if len(name) > dobot.MaxPayloadSize {
		return invalid("device name longer than %d bytes", dobot.MaxPayloadSize)
	}
	_, err := a.send(ctx, dobot.NewSetDeviceName(name))
	return err
}

// DeviceVersion reads the firmware version
func (a *Arm) DeviceVersion(ctx context.Context) (dobot.DeviceVersion, error) {
	var v dobot.DeviceVersion
	err := a.getParams(ctx, dobot.CmdDeviceVersion, &v)
	return v, err
}

//////////////////////////////////////////////////////////////
// Pose and alarms
//////////////////////////////////////////////////////////////

// Pose returns the cached pose and when it was read. It never blocks on
// I/O; the time is zero until the first successful poll.
func (a *Arm) Pose() (dobot.Pose, time.Time) {
	return a.cache.Pose()
}

// FetchPose reads the pose from the device and refreshes the cache
func (a *Arm) FetchPose(ctx context.Context) (dobot.Pose, error) {
	var p dobot.Pose
	if err := a.getParams(ctx, dobot.CmdGetPose, &p); err != nil {
		return p, err
	}
	a.cache.SetPose(p)
	return p, nil
}

// ResetPose re-bases the real-time pose. With manual false the device uses
// its angle sensors; otherwise the given rear and front arm angles.
func (a *Arm) ResetPose(ctx context.Context, manual bool, rearArmAngle, frontArmAngle float32) error {
	_, err := a.send(ctx, dobot.NewResetPose(dobot.ResetPoseParams{
		Manual:        manual,
		RearArmAngle:  rearArmAngle,
		FrontArmAngle: frontArmAngle,
	}))
	return err
}

// AlarmsState returns the cached alarm bits and when they were read
func (a *Arm) AlarmsState() (dobot.AlarmsState, time.Time) {
	return a.cache.Alarms()
}

// FetchAlarms reads the alarm bits from the device and refreshes the cache
func (a *Arm) FetchAlarms(ctx context.Context) (dobot.AlarmsState, error) {
	var s dobot.AlarmsState
	if err := a.getParams(ctx, dobot.CmdGetAlarms, &s); err != nil {
		return s, err
	}
	a.cache.SetAlarms(s)
	return s, nil
}

// ClearAllAlarmsState clears every alarm bit on the device
func (a *Arm) ClearAllAlarmsState(ctx context.Context) error {
	if err := a.control(ctx, dobot.CmdClearAllAlarmsState); err != nil {
		return err
	}
	a.cache.SetAlarms(dobot.AlarmsState{})
	return nil
}

//////////////////////////////////////////////////////////////
// Homing
//////////////////////////////////////////////////////////////

// SetHomeParams sets the homing target. Queued writes return the queue
// index; immediate writes return 0.
func (a *Arm) SetHomeParams(ctx context.Context, p dobot.HomeParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdHomeParams, queued, p)
}

// HomeParams reads the homing target
func (a *Arm) HomeParams(ctx context.Context) (dobot.HomeParams, error) {
	var p dobot.HomeParams
	err := a.getParams(ctx, dobot.CmdHomeParams, &p)
	return p, err
}

// SetHomeCmd queues a homing move
func (a *Arm) SetHomeCmd(ctx context.Context) (uint64, error) {
	return a.enqueue(ctx, dobot.NewHomeCmd())
}

//////////////////////////////////////////////////////////////
// JOG
//////////////////////////////////////////////////////////////

// SetJOGJointParams writes per-joint jog velocity and acceleration. With
// queued set it returns the queue index, otherwise 0.
func (a *Arm) SetJOGJointParams(ctx context.Context, p dobot.JOGJointParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdJOGJointParams, queued, p)
}

// JOGJointParams reads the per-joint jog settings
func (a *Arm) JOGJointParams(ctx context.Context) (dobot.JOGJointParams, error) {
	var p dobot.JOGJointParams
	err := a.getParams(ctx, dobot.CmdJOGJointParams, &p)
	return p, err
}

// SetJOGCoordinateParams writes per-axis Cartesian jog velocity and acceleration
func (a *Arm) SetJOGCoordinateParams(ctx context.Context, p dobot.JOGCoordinateParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdJOGCoordinateParams, queued, p)
}

// JOGCoordinateParams reads the Cartesian jog settings
func (a *Arm) JOGCoordinateParams(ctx context.Context) (dobot.JOGCoordinateParams, error) {
	var p dobot.JOGCoordinateParams
	err := a.getParams(ctx, dobot.CmdJOGCoordinateParams, &p)
	return p, err
}

// SetJOGCommonParams writes the jog velocity and acceleration ratios
func (a *Arm) SetJOGCommonParams(ctx context.Context, p dobot.JOGCommonParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdJOGCommonParams, queued, p)
}

// JOGCommonParams reads the jog ratios
func (a *Arm) JOGCommonParams(ctx context.Context) (dobot.JOGCommonParams, error) {
	var p dobot.JOGCommonParams
	err := a.getParams(ctx, dobot.CmdJOGCommonParams, &p)
	return p, err
}

// SetJOGCmd queues a jog key press. JogIdle releases the key.
func (a *Arm) SetJOGCmd(ctx context.Context, isJoint bool, cmd dobot.JOGCommand) (uint64, error) {
	if !cmd.Valid() {
		return 0, invalid("jog command %d", uint8(cmd))
	}
	return a.enqueue(ctx, dobot.NewJOGCmd(dobot.JOGCmd{IsJoint: isJoint, Cmd: cmd}))
}

//////////////////////////////////////////////////////////////
// PTP
//////////////////////////////////////////////////////////////

// SetPTPJointParams writes per-joint point-to-point velocity and acceleration
func (a *Arm) SetPTPJointParams(ctx context.Context, p dobot.PTPJointParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdPTPJointParams, queued, p)
}

// PTPJointParams reads the per-joint point-to-point settings
func (a *Arm) PTPJointParams(ctx context.Context) (dobot.PTPJointParams, error) {
	var p dobot.PTPJointParams
	err := a.getParams(ctx, dobot.CmdPTPJointParams, &p)
	return p, err
}

// SetPTPCoordinateParams writes Cartesian and end-effector rotation velocity and acceleration
func (a *Arm) SetPTPCoordinateParams(ctx context.Context, p dobot.PTPCoordinateParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdPTPCoordinateParams, queued, p)
}

// PTPCoordinateParams reads the Cartesian point-to-point settings
func (a *Arm) PTPCoordinateParams(ctx context.Context) (dobot.PTPCoordinateParams, error) {
	var p dobot.PTPCoordinateParams
	err := a.getParams(ctx, dobot.CmdPTPCoordinateParams, &p)
	return p, err
}

// SetPTPJumpParams writes the lift height and z limit used by jump moves
func (a *Arm) SetPTPJumpParams(ctx context.Context, p dobot.PTPJumpParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdPTPJumpParams, queued, p)
}

// PTPJumpParams reads the jump move settings
func (a *Arm) PTPJumpParams(ctx context.Context) (dobot.PTPJumpParams, error) {
	var p dobot.PTPJumpParams
	err := a.getParams(ctx, dobot.CmdPTPJumpParams, &p)
	return p, err
}

// SetPTPCommonParams writes the point-to-point velocity and acceleration ratios
func (a *Arm) SetPTPCommonParams(ctx context.Context, p dobot.PTPCommonParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdPTPCommonParams, queued, p)
}

// PTPCommonParams reads the point-to-point ratios
func (a *Arm) PTPCommonParams(ctx context.Context) (dobot.PTPCommonParams, error) {
	var p dobot.PTPCommonParams
	err := a.getParams(ctx, dobot.CmdPTPCommonParams, &p)
	return p, err
}

// SetPTPCmd queues a point-to-point move. The mode decides whether x, y, z
// and r are Cartesian coordinates, joint angles or increments.
func (a *Arm) SetPTPCmd(ctx context.Context, mode dobot.PTPMode, x, y, z, r float32) (uint64, error) {
	if !mode.Valid() {
		return 0, invalid("ptp mode %d", uint8(mode))
	}
	return a.enqueue(ctx, dobot.NewPTPCmd(dobot.PTPCmd{Mode: mode, X: x, Y: y, Z: z, R: r}))
}

//////////////////////////////////////////////////////////////
// CP
//////////////////////////////////////////////////////////////

// SetCPParams writes the continuous-path planning limits
func (a *Arm) SetCPParams(ctx context.Context, p dobot.CPParams, queued bool) (uint64, error) {
	return a.setParams(ctx, dobot.CmdCPParams, queued, p)
}

// CPParams reads the continuous-path planning limits
func (a *Arm) CPParams(ctx context.Context) (dobot.CPParams, error) {
	var p dobot.CPParams
	err := a.getParams(ctx, dobot.CmdCPParams, &p)
	return p, err
}

// SetCPCmd queues a continuous-path segment
func (a *Arm) SetCPCmd(ctx context.Context, mode dobot.CPMode, x, y, z, velocity float32) (uint64, error) {
	if mode != dobot.CPRelative && mode != dobot.CPAbsolute {
		return 0, invalid("cp mode %d", uint8(mode))
	}
	return a.enqueue(ctx, dobot.NewCPCmd(dobot.CPCmd{Mode: mode, X: x, Y: y, Z: z, Velocity: velocity}))
}

//////////////////////////////////////////////////////////////
// WAIT and calibration
//////////////////////////////////////////////////////////////

// SetWAITCmd queues a pause of the given length
func (a *Arm) SetWAITCmd(ctx context.Context, timeoutMs uint32) (uint64, error) {
	return a.enqueue(ctx, dobot.NewWAITCmd(dobot.WAITCmd{TimeoutMs: timeoutMs}))
}

// SetAngleSensorStaticError stores the arm angle sensor calibration offsets
func (a *Arm) SetAngleSensorStaticError(ctx context.Context, e dobot.ArmAngleError) error {
	_, err := a.setParams(ctx, dobot.CmdAngleSensorStaticError, false, e)
	return err
}

// AngleSensorStaticError reads the arm angle sensor calibration offsets
func (a *Arm) AngleSensorStaticError(ctx context.Context) (dobot.ArmAngleError, error) {
	var e dobot.ArmAngleError
	err := a.getParams(ctx, dobot.CmdAngleSensorStaticError, &e)
	return e, err
}

//////////////////////////////////////////////////////////////
// Queue control
//////////////////////////////////////////////////////////////

// Play starts executing the device queue
func (a *Arm) Play(ctx context.Context) error {
	return a.control(ctx, dobot.CmdQueuedCmdStartExec)
}

// Stop stops the queue after the current command completes
func (a *Arm) Stop(ctx context.Context) error {
	return a.control(ctx, dobot.CmdQueuedCmdStopExec)
}

// ForceStop stops the queue immediately, abandoning the current command
func (a *Arm) ForceStop(ctx context.Context) error {
	return a.control(ctx, dobot.CmdQueuedCmdForceStopExec)
}

// Clear empties the device queue. The device restarts its index count, so
// the cached index is reset too.
func (a *Arm) Clear(ctx context.Context) error {
	if err := a.control(ctx, dobot.CmdQueuedCmdClear); err != nil {
		return err
	}
	a.cache.ResetQueue()
	return nil
}

// QueuedCmdCurrentIndex reads the index of the last executed queued command
func (a *Arm) QueuedCmdCurrentIndex(ctx context.Context) (uint64, error) {
	gen := a.cache.QueueGeneration()
	payload, err := a.send(ctx, dobot.NewGetQueuedCmdCurrentIndex())
	if err != nil {
		return 0, err
	}
	idx, err := dobot.ParseQueuedIndex(payload)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", dobot.CmdGetQueuedCmdCurrentIndex, err)
	}
	a.cache.SetCurrentIndexAt(gen, idx)
	return idx, nil
}

// QueuedCmdLeftSpace reads the number of free queue slots
func (a *Arm) QueuedCmdLeftSpace(ctx context.Context) (uint32, error) {
	payload, err := a.send(ctx, dobot.NewGetQueuedCmdLeftSpace())
	if err != nil {
		return 0, err
	}
	n, err := dobot.ParseLeftSpace(payload)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", dobot.CmdGetQueuedCmdLeftSpace, err)
	}
	a.cache.SetLeftSpace(n)
	return n, nil
}

// QueueStatus returns the cached queue progress
func (a *Arm) QueueStatus() state.QueueStatus {
	return a.cache.QueueStatus()
}

// WaitQueued blocks until the device has executed the queued command with
// index idx. Without polling it queries the device itself.
func (a *Arm) WaitQueued(ctx context.Context, idx uint64) error {
	if a.cfg.Polling {
		err := a.cache.WaitIndex(ctx, idx)
		if errors.Is(err, state.ErrClosed) {
			return link.ErrTransportClosed
		}
		return err
	}

	interval := a.cfg.Poll.Interval
	if interval <= 0 {
		interval = poller.DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		current, err := a.QueuedCmdCurrentIndex(ctx)
		if err != nil {
			return err
		}
		if current >= idx {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
