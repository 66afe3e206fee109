package service

// Viewer 当前请求的查看者，未登录时为匿名
type Viewer struct {
	id    uint64
	authn bool
}

// Anonymous 未登录查看者，永远不满足关注关系
func Anonymous() Viewer { return Viewer{} }

func AsUser(id uint64) Viewer {
	if id == 0 {
		return Viewer{}
	}
	return Viewer{id: id, authn: true}
}

// ID 第二个返回值为 false 表示匿名
func (v Viewer) ID() (uint64, bool) { return v.id, v.authn }

func (v Viewer) IsAnonymous() bool { return !v.authn }

// Is 判断查看者是否就是 userID
func (v Viewer) Is(userID uint64) bool { return v.authn && v.id == userID }
