//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa -framework AppKit
#import <Cocoa/Cocoa.h>
#import <AppKit/AppKit.h>

int isAppActive() {
    return [NSApp isActive] ? 1 : 0;
}

void activateApp() {
    [NSApp activateIgnoringOtherApps:YES];
}

void setAccessoryPolicy() {
    [NSApp setActivationPolicy:NSApplicationActivationPolicyAccessory];
}

void setRegularPolicy() {
    [NSApp setActivationPolicy:NSApplicationActivationPolicyRegular];
}
*/
import "C"

// IsAppActive reports whether the application holds keyboard focus
func IsAppActive() bool {
	return C.isAppActive() == 1
}

// ActivateApp brings the application to the front, above other apps.
// Used when the ring window is presented over whatever the user was doing.
func ActivateApp() {
	C.setRegularPolicy()
	C.activateApp()
}

// HideFromDock switches to an accessory (tray-only) application
func HideFromDock() {
	C.setAccessoryPolicy()
}
