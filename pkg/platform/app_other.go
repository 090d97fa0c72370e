//go:build !darwin

package platform

// IsAppActive always returns true where focus cannot be probed
func IsAppActive() bool {
	return true
}

func ActivateApp() {}

func HideFromDock() {}
