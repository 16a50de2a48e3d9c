// Package version reports build information of streamkit binaries.
//
//	go build -ldflags "-X github.com/kbukum/streamkit/version.Version=1.0.0" ./cmd/streamkitd
package version
