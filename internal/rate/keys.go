package rate

// DefaultPrefix namespaces throttle counters in Redis.
const DefaultPrefix = "login:attempts"

func (l *Limiter) emailKey(email string) string {
	return l.config.Prefix + ":email:" + email
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":ip:" + ip
}
