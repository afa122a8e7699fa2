//go:build windows

package filesystem

import "golang.org/x/sys/windows"

// osReplace 使用 MoveFileEx(REPLACE_EXISTING|WRITE_THROUGH) 覆盖已存在的目标。
func osReplace(tmpPath, dest string) error {
	from, err := windows.UTF16PtrFromString(tmpPath)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dest)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}

// syncDir 在 Windows 上无目录 fsync，空操作。
func syncDir(string) error { return nil }
