// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package script loads motion scripts and replays them as queued commands.
//
// Scripts are a list of steps, written as YAML for editing by hand or as
// CBOR when generated by tools:
//
//	name: pick
//	steps:
//	  - op: ptp_common
//	    velocity_ratio: 50
//	    acceleration_ratio: 50
//	  - op: home
//	  - op: ptp
//	    mode: movj_xyz
//	    x: 200
//	    z: 50
//	  - op: wait
//	    ms: 500
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/magician/pkg/dobot"
)

// Step operations
const (
	OpHome          = "home"
	OpPTP           = "ptp"
	OpCP            = "cp"
	OpJOG           = "jog"
	OpWait          = "wait"
	OpHomeParams    = "home_params"
	OpPTPCommon     = "ptp_common"
	OpPTPCoordinate = "ptp_coordinate"
	OpPTPJump       = "ptp_jump"
	OpCPParams      = "cp_params"
)

// Format is a script encoding
type Format int

const (
	FormatYAML Format = iota
	FormatCBOR
)

// Script is a named list of steps
type Script struct {
	Name  string `yaml:"name,omitempty" cbor:"name,omitempty"`
	Steps []Step `yaml:"steps" cbor:"steps"`
}

// Step is one queued command. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op" cbor:"op"`

	// ptp, cp, jog
	Mode  string `yaml:"mode,omitempty" cbor:"mode,omitempty"`
	Joint bool   `yaml:"joint,omitempty" cbor:"joint,omitempty"`

	// ptp, cp, home_params
	X float32 `yaml:"x,omitempty" cbor:"x,omitempty"`
	Y float32 `yaml:"y,omitempty" cbor:"y,omitempty"`
	Z float32 `yaml:"z,omitempty" cbor:"z,omitempty"`
	R float32 `yaml:"r,omitempty" cbor:"r,omitempty"`

	// cp
	Velocity float32 `yaml:"velocity,omitempty" cbor:"velocity,omitempty"`

	// wait
	Ms uint32 `yaml:"ms,omitempty" cbor:"ms,omitempty"`

	// ptp_common
	VelocityRatio     float32 `yaml:"velocity_ratio,omitempty" cbor:"velocity_ratio,omitempty"`
	AccelerationRatio float32 `yaml:"acceleration_ratio,omitempty" cbor:"acceleration_ratio,omitempty"`

	// ptp_coordinate
	XYZVelocity     float32 `yaml:"xyz_velocity,omitempty" cbor:"xyz_velocity,omitempty"`
	RVelocity       float32 `yaml:"r_velocity,omitempty" cbor:"r_velocity,omitempty"`
	XYZAcceleration float32 `yaml:"xyz_acceleration,omitempty" cbor:"xyz_acceleration,omitempty"`
	RAcceleration   float32 `yaml:"r_acceleration,omitempty" cbor:"r_acceleration,omitempty"`

	// ptp_jump
	JumpHeight float32 `yaml:"jump_height,omitempty" cbor:"jump_height,omitempty"`
	ZLimit     float32 `yaml:"z_limit,omitempty" cbor:"z_limit,omitempty"`

	// cp_params
	PlanAcc       float32 `yaml:"plan_acc,omitempty" cbor:"plan_acc,omitempty"`
	JunctionVel   float32 `yaml:"junction_vel,omitempty" cbor:"junction_vel,omitempty"`
	Acc           float32 `yaml:"acc,omitempty" cbor:"acc,omitempty"`
	RealTimeTrack bool    `yaml:"real_time_track,omitempty" cbor:"real_time_track,omitempty"`
}

// Target receives the queued calls of a script. *arm.Arm satisfies it.
type Target interface {
	SetHomeCmd(ctx context.Context) (uint64, error)
	SetPTPCmd(ctx context.Context, mode dobot.PTPMode, x, y, z, r float32) (uint64, error)
	SetCPCmd(ctx context.Context, mode dobot.CPMode, x, y, z, velocity float32) (uint64, error)
	SetJOGCmd(ctx context.Context, isJoint bool, cmd dobot.JOGCommand) (uint64, error)
	SetWAITCmd(ctx context.Context, timeoutMs uint32) (uint64, error)
	SetHomeParams(ctx context.Context, p dobot.HomeParams, queued bool) (uint64, error)
	SetPTPCommonParams(ctx context.Context, p dobot.PTPCommonParams, queued bool) (uint64, error)
	SetPTPCoordinateParams(ctx context.Context, p dobot.PTPCoordinateParams, queued bool) (uint64, error)
	SetPTPJumpParams(ctx context.Context, p dobot.PTPJumpParams, queued bool) (uint64, error)
	SetCPParams(ctx context.Context, p dobot.CPParams, queued bool) (uint64, error)
}

// FormatFromPath picks the encoding from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cbor":
		return FormatCBOR, nil
	}
	return 0, fmt.Errorf("script: unknown extension %q (want .yaml, .yml or .cbor)", filepath.Ext(path))
}

// LoadFile reads and validates a script
func LoadFile(path string) (*Script, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script
func Parse(data []byte, format Format) (*Script, error) {
	var s Script
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("unknown format %d", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal encodes the script. CBOR output is canonical so equal scripts
// encode to equal bytes.
func (s *Script) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(s)
	case FormatCBOR:
		em, err := cbor.CanonicalEncOptions().EncMode()
		if err != nil {
			return nil, err
		}
		return em.Marshal(s)
	}
	return nil, fmt.Errorf("unknown format %d", format)
}

// Validate checks every step without touching a device.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("no steps")
	}
	for i := range s.Steps {
		if _, err := s.Steps[i].call(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Steps[i].Op, err)
		}
	}
	return nil
}

// Run issues every step as a queued command, in order, and returns the
// queue index of the last one. It stops at the first failure; commands
// already queued stay queued.
func (s *Script) Run(ctx context.Context, t Target) (uint64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	var last uint64
	for i := range s.Steps {
		call, _ := s.Steps[i].call()
		idx, err := call(ctx, t)
		if err != nil {
			return last, fmt.Errorf("step %d (%s): %w", i+1, s.Steps[i].Op, err)
		}
		last = idx
	}
	return last, nil
}

type stepCall func(ctx context.Context, t Target) (uint64, error)

// call resolves a step into the Target method it invokes
func (st Step) call() (stepCall, error) {
	switch strings.ToLower(st.Op) {
	case OpHome:
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetHomeCmd(ctx)
		}, nil

	case OpPTP:
		mode, err := dobot.ParsePTPMode(st.Mode)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetPTPCmd(ctx, mode, st.X, st.Y, st.Z, st.R)
		}, nil

	case OpCP:
		mode, err := parseCPMode(st.Mode)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetCPCmd(ctx, mode, st.X, st.Y, st.Z, st.Velocity)
		}, nil

	case OpJOG:
		cmd, err := dobot.ParseJOGCommand(st.Mode)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetJOGCmd(ctx, st.Joint, cmd)
		}, nil

	case OpWait:
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetWAITCmd(ctx, st.Ms)
		}, nil

	case OpHomeParams:
		p := dobot.HomeParams{X: st.X, Y: st.Y, Z: st.Z, R: st.R}
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetHomeParams(ctx, p, true)
		}, nil

	case OpPTPCommon:
		p := dobot.PTPCommonParams{VelocityRatio: st.VelocityRatio, AccelerationRatio: st.AccelerationRatio}
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetPTPCommonParams(ctx, p, true)
		}, nil

	case OpPTPCoordinate:
		p := dobot.PTPCoordinateParams{
			XYZVelocity:     st.XYZVelocity,
			RVelocity:       st.RVelocity,
			XYZAcceleration: st.XYZAcceleration,
			RAcceleration:   st.RAcceleration,
		}
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetPTPCoordinateParams(ctx, p, true)
		}, nil

	case OpPTPJump:
		p := dobot.PTPJumpParams{JumpHeight: st.JumpHeight, ZLimit: st.ZLimit}
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetPTPJumpParams(ctx, p, true)
		}, nil

	case OpCPParams:
		p := dobot.CPParams{PlanAcc: st.PlanAcc, JunctionVel: st.JunctionVel, Acc: st.Acc, RealTimeTrack: st.RealTimeTrack}
		return func(ctx context.Context, t Target) (uint64, error) {
			return t.SetCPParams(ctx, p, true)
		}, nil
	}
	return nil, fmt.Errorf("unknown op %q", st.Op)
}

func parseCPMode(s string) (dobot.CPMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relative", "0":
		return dobot.CPRelative, nil
	case "absolute", "1", "":
		return dobot.CPAbsolute, nil
	}
	return 0, fmt.Errorf("unknown cp mode %q", s)
}
