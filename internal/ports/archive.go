package ports

// ArchivePort converts between directory trees and the compressed archives
// exchanged as registry attachments.
type ArchivePort interface {
	Unpack(data []byte, dest string) error
	Pack(dir string) ([]byte, error)
}
