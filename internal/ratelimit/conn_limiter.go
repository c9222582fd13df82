package ratelimit

// ConnLimiter bounds what one relay connection may push: a message rate and a
// byte rate. A zero limit disables that dimension.
type ConnLimiter struct {
	messages *TokenBucket
	bytes    *TokenBucket
}

type ConnLimits struct {
	MessagesPerSecond int
	MessageBurst      int
	BytesPerSecond    int
}

func NewConnLimiter(clock Clock, l ConnLimits) *ConnLimiter {
	c := &ConnLimiter{}
	if l.MessagesPerSecond > 0 {
		burst := l.MessageBurst
		if burst <= 0 {
			burst = l.MessagesPerSecond
		}
		c.messages = NewTokenBucket(clock, int64(burst), int64(l.MessagesPerSecond))
	}
	if l.BytesPerSecond > 0 {
		c.bytes = NewTokenBucket(clock, int64(l.BytesPerSecond), int64(l.BytesPerSecond))
	}
	return c
}

// Allow charges one message of size n. A message rejected by the byte budget
// still consumes a message token.
func (c *ConnLimiter) Allow(n int) bool {
	if c == nil {
		return true
	}
	if c.messages != nil && !c.messages.Allow(1) {
		return false
	}
	if c.bytes != nil && !c.bytes.Allow(int64(n)) {
		return false
	}
	return true
}
