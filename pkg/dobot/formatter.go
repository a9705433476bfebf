// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"fmt"
	"strings"
)

var commandNames = map[CommandID]string{
	CmdDeviceSN:                 "DEVICE_SN",
	CmdDeviceName:               "DEVICE_NAME",
	CmdDeviceVersion:            "DEVICE_VERSION",
	CmdGetPose:                  "GET_POSE",
	CmdResetPose:                "RESET_POSE",
	CmdGetAlarms:                "GET_ALARMS",
	CmdClearAllAlarmsState:      "CLEAR_ALL_ALARMS_STATE",
	CmdHomeParams:               "HOME_PARAMS",
	CmdHomeCmd:                  "HOME_CMD",
	CmdHHTTrigMode:              "HHT_TRIG_MODE",
	CmdHHTTrigOutputEnabled:     "HHT_TRIG_OUTPUT_ENABLED",
	CmdHHTTrigOutput:            "HHT_TRIG_OUTPUT",
	CmdArmOrientation:           "ARM_ORIENTATION",
	CmdEndEffectorParams:        "END_EFFECTOR_PARAMS",
	CmdEndEffectorLaser:         "END_EFFECTOR_LASER",
	CmdEndEffectorSuction:       "END_EFFECTOR_SUCTION_CUP",
	CmdEndEffectorGripper:       "END_EFFECTOR_GRIPPER",
	CmdJOGJointParams:           "JOG_JOINT_PARAMS",
	CmdJOGCoordinateParams:      "JOG_COORDINATE_PARAMS",
	CmdJOGCommonParams:          "JOG_COMMON_PARAMS",
	CmdJOGCmd:                   "JOG_CMD",
	CmdPTPJointParams:           "PTP_JOINT_PARAMS",
	CmdPTPCoordinateParams:      "PTP_COORDINATE_PARAMS",
	CmdPTPJumpParams:            "PTP_JUMP_PARAMS",
	CmdPTPCommonParams:          "PTP_COMMON_PARAMS",
	CmdPTPCmd:                   "PTP_CMD",
	CmdCPParams:                 "CP_PARAMS",
	CmdCPCmd:                    "CP_CMD",
	CmdCPLECmd:                  "CPLE_CMD",
	CmdARCParams:                "ARC_PARAMS",
	CmdARCCmd:                   "ARC_CMD",
	CmdWAITCmd:                  "WAIT_CMD",
	CmdTRIGCmd:                  "TRIG_CMD",
	CmdIOMultiplexing:           "IO_MULTIPLEXING",
	CmdIODO:                     "IO_DO",
	CmdIOPWM:                    "IO_PWM",
	CmdGetIODI:                  "GET_IO_DI",
	CmdGetIOADC:                 "GET_IO_ADC",
	CmdSetEMotor:                "SET_E_MOTOR",
	CmdAngleSensorStaticError:   "ANGLE_SENSOR_STATIC_ERROR",
	CmdWIFIConfigMode:           "WIFI_CONFIG_MODE",
	CmdWIFISSID:                 "WIFI_SSID",
	CmdWIFIPassword:             "WIFI_PASSWORD",
	CmdWIFIIPAddress:            "WIFI_IP_ADDRESS",
	CmdWIFINetmask:              "WIFI_NETMASK",
	CmdWIFIGateway:              "WIFI_GATEWAY",
	CmdWIFIDNS:                  "WIFI_DNS",
	CmdGetWIFIConnectStatus:     "GET_WIFI_CONNECT_STATUS",
	CmdQueuedCmdStartExec:       "QUEUED_CMD_START_EXEC",
	CmdQueuedCmdStopExec:        "QUEUED_CMD_STOP_EXEC",
	CmdQueuedCmdForceStopExec:   "QUEUED_CMD_FORCE_STOP_EXEC",
	CmdQueuedCmdStartDownload:   "QUEUED_CMD_START_DOWNLOAD",
	CmdQueuedCmdStopDownload:    "QUEUED_CMD_STOP_DOWNLOAD",
	CmdQueuedCmdClear:           "QUEUED_CMD_CLEAR",
	CmdGetQueuedCmdCurrentIndex: "GET_QUEUED_CMD_CURRENT_INDEX",
	CmdGetQueuedCmdLeftSpace:    "GET_QUEUED_CMD_LEFT_SPACE",
}

// Commands returns every command id in the firmware catalog
func Commands() []CommandID {
	ids := make([]CommandID, 0, len(commandNames))
	for id := 0; id <= 0xFF; id++ {
		if _, ok := commandNames[CommandID(id)]; ok {
			ids = append(ids, CommandID(id))
		}
	}
	return ids
}

// FormatCommand returns the human-readable name for a command id
func FormatCommand(id CommandID) string {
	if name, ok := commandNames[id]; ok {
		return name
	}
	return "UNKNOWN"
}

func (id CommandID) String() string {
	return FormatCommand(id)
}

var ptpModeNames = []string{
	"JUMP_XYZ", "MOVJ_XYZ", "MOVL_XYZ", "JUMP_ANGLE", "MOVJ_ANGLE",
	"MOVL_ANGLE", "MOVJ_INC", "MOVL_INC", "MOVJ_XYZ_INC", "JUMP_MOVL_XYZ",
}

func (m PTPMode) String() string {
	if m.Valid() {
		return ptpModeNames[m]
	}
	return fmt.Sprintf("PTP_MODE(%d)", uint8(m))
}

// ParsePTPMode accepts a mode name (case-insensitive, e.g. "movj_xyz") or
// its numeric value.
func ParsePTPMode(s string) (PTPMode, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range ptpModeNames {
		if upper == name || upper == fmt.Sprint(i) {
			return PTPMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown ptp mode %q", s)
}

var jogNames = []string{
	"IDLE", "AP_DOWN", "AN_DOWN", "BP_DOWN", "BN_DOWN",
	"CP_DOWN", "CN_DOWN", "DP_DOWN", "DN_DOWN",
}

func (c JOGCommand) String() string {
	if c.Valid() {
		return jogNames[c]
	}
	return fmt.Sprintf("JOG(%d)", uint8(c))
}

// ParseJOGCommand accepts a jog command name or its numeric value.
func ParseJOGCommand(s string) (JOGCommand, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range jogNames {
		if upper == name || upper == fmt.Sprint(i) {
			return JOGCommand(i), nil
		}
	}
	return 0, fmt.Errorf("unknown jog command %q", s)
}

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")

	flags := "R"
	if f.Write {
		flags = "W"
	}
	if f.Queued {
		flags += "Q"
	}

	result := fmt.Sprintf("[%s] %s (%d) %s len=%d\n", timestamp, FormatCommand(f.ID), f.ID, flags, f.Length())
	return result + FormatPayload(f)
}

// FormatPayload decodes the payloads of the commonly seen frames; anything
// else is rendered as a hex dump
func FormatPayload(f *Frame) string {
	if len(f.Payload) == 0 {
		return "  (no payload)\n"
	}

	if idx, ok := f.QueuedIndex(); ok {
		return fmt.Sprintf("  Queued Index: %d\n", idx)
	}

	switch f.ID {
	case CmdGetPose:
		var p Pose
		if p.UnmarshalBinary(f.Payload) == nil {
			return FormatPose(p)
		}

	case CmdGetAlarms:
		var a AlarmsState
		if a.UnmarshalBinary(f.Payload) == nil {
			return fmt.Sprintf("  Alarms: %s\n", FormatAlarms(a))
		}

	case CmdGetQueuedCmdCurrentIndex:
		if idx, err := ParseQueuedIndex(f.Payload); err == nil {
			return fmt.Sprintf("  Current Index: %d\n", idx)
		}

	case CmdGetQueuedCmdLeftSpace:
		if n, err := ParseLeftSpace(f.Payload); err == nil {
			return fmt.Sprintf("  Left Space: %d\n", n)
		}

	case CmdPTPCmd:
		var c PTPCmd
		if c.UnmarshalBinary(f.Payload) == nil {
			return fmt.Sprintf("  Mode: %s, X: %.2f, Y: %.2f, Z: %.2f, R: %.2f\n", c.Mode, c.X, c.Y, c.Z, c.R)
		}

	case CmdJOGCmd:
		var c JOGCmd
		if c.UnmarshalBinary(f.Payload) == nil {
			kind := "coordinate"
			if c.IsJoint {
				kind = "joint"
			}
			return fmt.Sprintf("  Jog: %s (%s)\n", c.Cmd, kind)
		}

	case CmdWAITCmd:
		var c WAITCmd
		if c.UnmarshalBinary(f.Payload) == nil {
			return fmt.Sprintf("  Wait: %d ms\n", c.TimeoutMs)
		}

	case CmdDeviceSN, CmdDeviceName:
		return fmt.Sprintf("  Value: %q\n", ParseString(f.Payload))

	case CmdDeviceVersion:
		var v DeviceVersion
		if v.UnmarshalBinary(f.Payload) == nil {
			return fmt.Sprintf("  Version: %s\n", v)
		}
	}

	// Default: hex dump
	var s strings.Builder
	s.WriteString("  Payload: ")
	for i, b := range f.Payload {
		if i > 0 && i%16 == 0 {
			s.WriteString("\n           ")
		}
		fmt.Fprintf(&s, "%02X ", b)
	}
	s.WriteString("\n")
	return s.String()
}

// FormatPose renders a pose on two lines
func FormatPose(p Pose) string {
	return fmt.Sprintf("  X: %.2f, Y: %.2f, Z: %.2f, R: %.2f\n  Joints: %.2f, %.2f, %.2f, %.2f\n",
		p.X, p.Y, p.Z, p.R, p.JointAngle[0], p.JointAngle[1], p.JointAngle[2], p.JointAngle[3])
}

// FormatAlarms lists active alarm bits, or "none"
func FormatAlarms(a AlarmsState) string {
	active := a.Active()
	if len(active) == 0 {
		return "none"
	}
	parts := make([]string, len(active))
	for i, bit := range active {
		parts[i] = fmt.Sprintf("0x%02X", bit)
	}
	return strings.Join(parts, " ")
}

// FormatBytes renders a wire frame as spaced hex, e.g. "AA AA 03 00 0A F6"
func FormatBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
