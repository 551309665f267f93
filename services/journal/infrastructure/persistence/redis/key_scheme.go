package redis

import "fmt"

// KeyScheme is the concrete naming convention for this deployment: sorted
// sets and channels are namespaced under "journal:".
type KeyScheme struct{}

func (KeyScheme) PersistenceIDKey(persistenceID string) string {
	return fmt.Sprintf("journal:pid:%s", persistenceID)
}

func (KeyScheme) PersistenceIDChannel(persistenceID string) string {
	return fmt.Sprintf("journal:pid-channel:%s", persistenceID)
}

func (KeyScheme) TagKey(tag string) string {
	return fmt.Sprintf("journal:tag:%s", tag)
}

func (KeyScheme) TagChannel(tag string) string {
	return fmt.Sprintf("journal:tag-channel:%s", tag)
}
