package clientutil

import (
	"fmt"
	"os"
	"path/filepath"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/wire"
)

// Dispatch sends cmd as a request on codec and, for File/Image, the
// streamed upload that follows. It returns quit=true for KindQuit
// without writing anything. Local failures detected before the request
// is written are soft; failures after a write began are hard.
func Dispatch(codec *wire.Codec, cmd Command, log *logging.Logger) (quit bool, errOut *Error) {
	switch cmd.Kind {
	case KindQuit:
		return true, nil

	case KindFile, KindImage:
		return false, dispatchFile(codec, cmd, log)

	case KindNickname:
		if _, err := codec.Write(wire.NewAnnounceNickname(cmd.Nick)); err != nil {
			return false, HardErr(err)
		}
		return false, nil

	default:
		if _, err := codec.Write(wire.NewText(cmd.Text)); err != nil {
			return false, HardErr(err)
		}
		return false, nil
	}
}

func dispatchFile(codec *wire.Codec, cmd Command, log *logging.Logger) *Error {
	info, err := os.Stat(cmd.Path)
	if err != nil {
		return SoftErr(err)
	}
	if !info.Mode().IsRegular() {
		return SoftErr(fmt.Errorf("Only files are supported"))
	}

	basename := filepath.Base(cmd.Path)
	size := uint64(info.Size())

	var req wire.Request
	if cmd.Kind == KindImage {
		if !wire.IsImageName(basename) {
			return SoftErr(fmt.Errorf("Only .png images are supported"))
		}
		if log != nil {
			log.Debugf("image size: %s", HumanBytes(float64(size)))
		}
		req = wire.NewImageStream(basename, size)
	} else {
		if log != nil {
			log.Debugf("file size: %s", HumanBytes(float64(size)))
		}
		req = wire.NewFileStream(basename, size)
	}

	if _, err := codec.Write(req); err != nil {
		return HardErr(err)
	}

	// The announcement is already on the wire, so any failure from here
	// on is hard.
	if _, sendErr := SendStreamFile(codec, cmd.Path, log); sendErr != nil {
		return HardErr(sendErr.Unwrap())
	}
	return nil
}
