//go:build darwin

package main

import "golang.design/x/hotkey"

var quitModifiers = []hotkey.Modifier{hotkey.ModCmd}
