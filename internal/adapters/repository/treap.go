package repository

import "math/rand/v2"

// Treap ordered so that in-order traversal yields a leaderboard:
// experience DESC, then username ASC.
type node struct {
	username   string
	experience int64
	prio       uint64
	left       *node
	right      *node
	size       int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aExp, aUser) ranks before (bExp, bUser).
func less(aExp int64, aUser string, bExp int64, bUser string) bool {
	if aExp != bExp {
		return aExp > bExp
	}
	return aUser < bUser
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, user string, exp int64) *node {
	if n == nil {
		return &node{username: user, experience: exp, prio: rand.Uint64(), size: 1}
	}
	if less(exp, user, n.experience, n.username) {
		n.left = insert(n.left, user, exp)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, user, exp)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, user string, exp int64) *node {
	if n == nil {
		return nil
	}
	switch {
	case exp == n.experience && user == n.username:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, user, exp)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, user, exp)
		}
	case less(exp, user, n.experience, n.username):
		n.left = deleteNode(n.left, user, exp)
	default:
		n.right = deleteNode(n.right, user, exp)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit usernames in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.username)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}
