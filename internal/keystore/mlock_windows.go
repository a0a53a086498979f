//go:build windows

package keystore

func mlock([]byte) bool { return false }

func munlock([]byte) {}
