package clientutil

import (
	"io"
	"os"
	"time"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/wire"
)

const streamChunkSize = 4096

// SendStreamFile reads filepath in chunks and writes them as Payload
// frames on codec, followed by an End frame. It returns the total bytes
// written to the wire (frame overhead included).
func SendStreamFile(codec *wire.Codec, filepath string, log *logging.Logger) (int, *Error) {
	f, err := os.Open(filepath)
	if err != nil {
		return 0, SoftErr(err)
	}
	defer f.Close()

	buf := make([]byte, streamChunkSize)
	bytesSent := 0
	bytesFile := 0
	start := time.Now()

	for {
		n, err := f.Read(buf)
		if n > 0 {
			written, werr := codec.Write(wire.NewPayloadFrame(append([]byte(nil), buf[:n]...)))
			if werr != nil {
				return bytesSent, HardErr(werr)
			}
			bytesSent += written
			bytesFile += n
			if log != nil {
				log.Debugf("sent %d bytes, chunk size was %d", bytesSent, n)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return bytesSent, SoftErr(err)
		}
	}

	written, err := codec.Write(wire.NewEndFrame())
	if err != nil {
		return bytesSent, HardErr(err)
	}
	bytesSent += written

	if log != nil {
		elapsed := time.Since(start).Seconds()
		speed := float64(bytesFile)
		if elapsed > 0 {
			speed /= elapsed
		}
		log.Debugf("sent %s of data in total, speed was %s/s", HumanBytes(float64(bytesFile)), HumanBytes(speed))
	}

	return bytesSent, nil
}
