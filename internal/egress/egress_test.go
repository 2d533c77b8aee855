package egress

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/vitrine/internal/log"
)

func TestResultLine(t *testing.T) {
	line, err := ResultLine("hello%20world")
	require.NoError(t, err)
	assert.Equal(t, `{"result":"hello world"}`+"\n", string(line))

	line, err = ResultLine("100%")
	require.NoError(t, err)
	assert.Equal(t, `{"result":"100%"}`+"\n", string(line))

	line, err = ResultLine("a+b")
	require.NoError(t, err)
	assert.Equal(t, `{"result":"a+b"}`+"\n", string(line), "plus is not a space in results")
}

func TestEmitterAndConsoleLogShareLines(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf)
	e := NewEmitter(lw)
	logger := slog.New(log.NewConsoleHandler(lw, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		e.Emit(fmt.Sprintf("r%d", i))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Debug("tick", "n", i)
		}(i)
	}
	e.Wait()
	wg.Wait()

	results, diagnostics := 0, 0
	sc := bufio.NewScanner(strings.NewReader(buf.String()))
	for sc.Scan() {
		var obj map[string]string
		require.NoError(t, json.Unmarshal(sc.Bytes(), &obj), "line %q", sc.Text())
		require.Len(t, obj, 1)
		if _, ok := obj["result"]; ok {
			results++
		}
		if _, ok := obj["debug"]; ok {
			diagnostics++
		}
	}
	assert.Equal(t, 50, results)
	assert.Equal(t, 50, diagnostics)
}
