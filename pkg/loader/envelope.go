package loader

import (
	"io"

	"github.com/marmos91/strata/pkg/codec"
	"github.com/marmos91/strata/pkg/manifest"
)

func codecEnvelope(data []byte, contentType, contentEncoding string, config manifest.JSON) codec.Envelope {
	return codec.Envelope{
		Data:            data,
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		Config:          []byte(config),
	}
}

func codecStreamEnvelope(r io.Reader, contentType, contentEncoding string, config manifest.JSON) codec.StreamEnvelope {
	return codec.StreamEnvelope{
		DataStream:      r,
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		Config:          []byte(config),
	}
}
