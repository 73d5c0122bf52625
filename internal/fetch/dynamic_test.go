package fetch

import (
	"sync/atomic"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
)

func TestDocumentStatusListener(t *testing.T) {
	docEvent := func(code int64) *network.EventResponseReceived {
		return &network.EventResponseReceived{
			Type:     network.ResourceTypeDocument,
			Response: &network.Response{Status: code},
		}
	}

	t.Run("records the first document response", func(t *testing.T) {
		var status atomic.Int64
		listen := documentStatusListener(&status)

		listen(docEvent(404))
		assert.Equal(t, int64(404), status.Load())
	})

	t.Run("ignores subresources", func(t *testing.T) {
		var status atomic.Int64
		listen := documentStatusListener(&status)

		listen(&network.EventResponseReceived{
			Type:     network.ResourceTypeImage,
			Response: &network.Response{Status: 500},
		})
		listen(&network.EventLoadingFinished{})
		assert.Equal(t, int64(0), status.Load())
	})

	t.Run("frame documents do not overwrite the navigation", func(t *testing.T) {
		var status atomic.Int64
		listen := documentStatusListener(&status)

		listen(docEvent(200))
		listen(docEvent(403)) // an iframe loading after the page
		assert.Equal(t, int64(200), status.Load())
	})
}
