package machine

type callbacks struct {
	toggle []func(running bool) //开关监听

	reloaded []func(countries int) //目录被重新加载
}

func (m *M) AddToggleCallback(f func(bool)) {
	m.toggle = append(m.toggle, f)
}

func (m *M) callToggle(running bool) {
	for _, f := range m.toggle {
		f(running)
	}
}

func (m *M) AddReloadCallback(f func(int)) {
	m.reloaded = append(m.reloaded, f)
}

func (m *M) callReloaded(countries int) {
	for _, f := range m.reloaded {
		f(countries)
	}
}
