package simplefeed

// authorizePostMutation decides whether the requesting author may mutate the
// target post. The rule is exact identifier equality with the post's author
// reference; derived fields like username or email never participate. Pure
// function, no I/O.
func authorizePostMutation(requester *Author, target *Post) error {
	if requester == nil || target == nil || target.Author == nil {
		return ErrForbidden
	}
	if requester.ID != target.Author.ID {
		return ErrForbidden
	}
	return nil
}
