// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Magician - Dobot Magician robotic arm driver
//
// A CLI tool for driving, scripting and monitoring a Dobot Magician over
// its serial protocol.

package main

import "github.com/Thermoquad/magician/cmd"

func main() {
	cmd.Execute()
}
