package inference

import (
	"fmt"
	"sync/atomic"
)

const namePool = 10

// Namer hands out "Agent A" through "Agent J" in rotation. Names repeat after
// ten calls; uniqueness is not guaranteed.
type Namer struct {
	n atomic.Uint64
}

func (n *Namer) Next() string {
	i := n.n.Add(1) - 1
	return fmt.Sprintf("Agent %c", rune('A'+i%namePool))
}
