// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dobot provides a Go implementation of the Dobot Magician serial
// command protocol.
//
// Every command travels in a fixed frame:
//
//	[0xAA][0xAA][length][control][commandId][payload...][checksum]
//
// The package covers frame encoding/decoding, checksum validation, the
// firmware command catalog and the binary layout of every parameter block.
package dobot

// Protocol framing bytes
const (
	SyncByte = 0xAA
	SyncSize = 2
)

// Control byte flags
const (
	CtrlQueued   = 0x01
	CtrlWrite    = 0x02
	ctrlReserved = 0xFC
)

// Frame size limits. The length byte covers control, command id, payload
// and checksum, so a frame carries at most 255-3 payload bytes.
const (
	FrameOverhead  = SyncSize + 4 // sync + length + control + id + checksum
	MaxLength      = 0xFF
	MinLength      = 3
	MaxPayloadSize = MaxLength - MinLength
	MaxFrameSize   = SyncSize + 1 + MaxLength
)

// CommandID identifies a protocol function. The numbering is the firmware's
// compatibility contract and must never change.
type CommandID uint8

// Device information
const (
	CmdDeviceSN      CommandID = 0
	CmdDeviceName    CommandID = 1
	CmdDeviceVersion CommandID = 2
)

// Pose and alarms
const (
	CmdGetPose             CommandID = 10
	CmdResetPose           CommandID = 11
	CmdGetAlarms           CommandID = 20
	CmdClearAllAlarmsState CommandID = 21
)

// Homing, handheld teaching, arm orientation, end effectors
const (
	CmdHomeParams           CommandID = 30
	CmdHomeCmd              CommandID = 31
	CmdHHTTrigMode          CommandID = 40
	CmdHHTTrigOutputEnabled CommandID = 41
	CmdHHTTrigOutput        CommandID = 42
	CmdArmOrientation       CommandID = 50
	CmdEndEffectorParams    CommandID = 60
	CmdEndEffectorLaser     CommandID = 61
	CmdEndEffectorSuction   CommandID = 62
	CmdEndEffectorGripper   CommandID = 63
)

// JOG
const (
	CmdJOGJointParams      CommandID = 70
	CmdJOGCoordinateParams CommandID = 71
	CmdJOGCommonParams     CommandID = 72
	CmdJOGCmd              CommandID = 73
)

// PTP
const (
	CmdPTPJointParams      CommandID = 80
	CmdPTPCoordinateParams CommandID = 81
	CmdPTPJumpParams       CommandID = 82
	CmdPTPCommonParams     CommandID = 83
	CmdPTPCmd              CommandID = 84
)

// CP, ARC, WAIT, TRIG
const (
	CmdCPParams  CommandID = 90
	CmdCPCmd     CommandID = 91
	CmdCPLECmd   CommandID = 92
	CmdARCParams CommandID = 100
	CmdARCCmd    CommandID = 101
	CmdWAITCmd   CommandID = 110
	CmdTRIGCmd   CommandID = 120
)

// IO and calibration
const (
	CmdIOMultiplexing         CommandID = 130
	CmdIODO                   CommandID = 131
	CmdIOPWM                  CommandID = 132
	CmdGetIODI                CommandID = 133
	CmdGetIOADC               CommandID = 134
	CmdSetEMotor              CommandID = 135
	CmdAngleSensorStaticError CommandID = 140
)

// WIFI
const (
	CmdWIFIConfigMode       CommandID = 150
	CmdWIFISSID             CommandID = 151
	CmdWIFIPassword         CommandID = 152
	CmdWIFIIPAddress        CommandID = 153
	CmdWIFINetmask          CommandID = 154
	CmdWIFIGateway          CommandID = 155
	CmdWIFIDNS              CommandID = 156
	CmdGetWIFIConnectStatus CommandID = 157
)

// Queued command control
const (
	CmdQueuedCmdStartExec       CommandID = 240
	CmdQueuedCmdStopExec        CommandID = 241
	CmdQueuedCmdForceStopExec   CommandID = 242
	CmdQueuedCmdStartDownload   CommandID = 243
	CmdQueuedCmdStopDownload    CommandID = 244
	CmdQueuedCmdClear           CommandID = 245
	CmdGetQueuedCmdCurrentIndex CommandID = 246
	CmdGetQueuedCmdLeftSpace    CommandID = 247
)

// PTPMode selects both the interpolation type and the coordinate frame of a
// point-to-point move.
type PTPMode uint8

// PTP mode values
const (
	JumpXYZ PTPMode = iota
	MovJXYZ
	MovLXYZ
	JumpAngle
	MovJAngle
	MovLAngle
	MovJInc
	MovLInc
	MovJXYZInc
	JumpMovLXYZ
)

// Valid reports whether m is one of the ten modes the firmware accepts.
func (m PTPMode) Valid() bool {
	return m <= JumpMovLXYZ
}

// JOGCommand is the direction key for a jog move.
type JOGCommand uint8

// JOG command values. Each pair drives one axis in coordinate jog or one
// joint in joint jog.
const (
	JogIdle   JOGCommand = 0 // stop
	JogAPDown JOGCommand = 1 // X+ / Joint1+
	JogANDown JOGCommand = 2 // X- / Joint1-
	JogBPDown JOGCommand = 3 // Y+ / Joint2+
	JogBNDown JOGCommand = 4 // Y- / Joint2-
	JogCPDown JOGCommand = 5 // Z+ / Joint3+
	JogCNDown JOGCommand = 6 // Z- / Joint3-
	JogDPDown JOGCommand = 7 // R+ / Joint4+
	JogDNDown JOGCommand = 8 // R- / Joint4-
)

// Valid reports whether c is within the firmware's jog command range.
func (c JOGCommand) Valid() bool {
	return c <= JogDNDown
}

// CPMode selects relative or absolute continuous-path targets.
type CPMode uint8

// CP mode values
const (
	CPRelative CPMode = 0
	CPAbsolute CPMode = 1
)

// Sizes of fixed device-side blocks.
const (
	AlarmsSize      = 16
	QueuedIndexSize = 8
	JointCount      = 4
)
