package watch

import "os"

func osReadDir(dir string) ([]os.DirEntry, error) {
	return os.ReadDir(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
