package websocket

import "strings"

// OriginChecker разрешённые Origin браузерных клиентов
//
// После создания только читается, блокировки не нужны.
type OriginChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

// NewOriginChecker создаёт проверку по списку; пустой список или "*" разрешают всё
func NewOriginChecker(origins []string) *OriginChecker {
	oc := &OriginChecker{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			oc.allowAll = true
		default:
			oc.allowed[o] = struct{}{}
		}
	}
	if len(oc.allowed) == 0 {
		oc.allowAll = true
	}
	return oc
}

// Check true для разрешённого Origin; пустой Origin (curl, боты) разрешён всегда
func (oc *OriginChecker) Check(origin string) bool {
	if origin == "" || oc.allowAll {
		return true
	}
	_, ok := oc.allowed[origin]
	return ok
}
