package cmdtests

import (
	"bytes"
	"compress/gzip"
	"fmt"

	"github.com/stretchr/testify/require"
)

func factsPayload(certname string, index int) []byte {
	return []byte(fmt.Sprintf(`{"certname":%q,"values":{"index":%d,"kernel":"Linux"}}`, certname, index))
}

func gzipPayload(t require.TestingT, data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}
