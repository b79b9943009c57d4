package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"sealroom/internal/domain"
)

// sealed is one line of send output and read input.
type sealed struct {
	ID     domain.MessageID     `json:"id"`
	Record domain.MessageRecord `json:"record"`
}

func writeSealed(w io.Writer, id domain.MessageID, rec domain.MessageRecord) error {
	return json.NewEncoder(w).Encode(sealed{ID: id, Record: rec})
}

// eachSealed decodes one JSON object per non-empty line of r.
func eachSealed(r io.Reader, fn func(sealed) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var s sealed
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if err := fn(s); err != nil {
			return fmt.Errorf("line %d (%s): %w", n, s.ID, err)
		}
	}
	return sc.Err()
}

// dmChannel names the DM channel between two users independent of who asks.
func dmChannel(a, b domain.UserID) domain.ChannelID {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return domain.ChannelID("dm:" + ids[0] + ":" + ids[1])
}
