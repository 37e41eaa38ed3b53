package tlsadapter

import (
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ooni/tlsadapter/tlsconnector"
)

func TestDefaultConnector(t *testing.T) {
	if DefaultConnector().AuthMode() != tlsconnector.AuthModeRequired {
		t.Fatal("expected required mode")
	}
}

func TestNewClient(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		},
	))
	defer server.Close()
	t.Run("with required mode", func(t *testing.T) {
		client, err := NewClient(tlsconnector.AuthModeRequired)
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.Get(server.URL)
		if !errors.Is(err, tlsconnector.ErrHandshakeFailed) {
			t.Fatal("expected ErrHandshakeFailed", err)
		}
	})
	t.Run("with none mode", func(t *testing.T) {
		client, err := NewClient(tlsconnector.AuthModeNone)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		data, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "ok" {
			t.Fatal("unexpected body")
		}
	})
}
