package browser

// SelectRepository selects a repository, and deselects any tag.
func (b *Browser) SelectRepository(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.repository = name
	b.tag = ""
}

func (b *Browser) SelectTag(tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tag = tag
}

func (b *Browser) ClearSelection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.repository, b.tag = "", ""
}

func (b *Browser) Selection() (repository, tag string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.repository, b.tag
}

// KnownRepositories is the repository list as of the last fetch.
func (b *Browser) KnownRepositories() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.repositories...)
}
