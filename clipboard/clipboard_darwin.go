//go:build darwin

package clipboard

import (
	"sync"
	"unsafe"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #include <stdlib.h>
// #include <string.h>
// #import <Cocoa/Cocoa.h>
//
// long pasteboardChangeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
//
// char* pasteboardText() {
//     @autoreleasepool {
//         NSString *s = [[NSPasteboard generalPasteboard] stringForType:NSPasteboardTypeString];
//         if (s == nil) {
//             return NULL;
//         }
//         return strdup([s UTF8String]);
//     }
// }
import "C"

// The pasteboard change count only moves when something is copied, so
// polling re-reads the string once per copy.
var pasteboard struct {
	sync.Mutex
	count C.long
	read  bool
	text  string
	err   error
}

func getClipboardContent(_ *application.App) (string, error) {
	pasteboard.Lock()
	defer pasteboard.Unlock()

	count := C.pasteboardChangeCount()
	if pasteboard.read && count == pasteboard.count {
		return pasteboard.text, pasteboard.err
	}

	text, err := "", error(nil)
	// nil for images and file lists.
	if cstr := C.pasteboardText(); cstr != nil {
		text = C.GoString(cstr)
		C.free(unsafe.Pointer(cstr))
	} else {
		err = ErrNotText
	}

	pasteboard.count, pasteboard.read = count, true
	pasteboard.text, pasteboard.err = text, err
	return text, err
}
