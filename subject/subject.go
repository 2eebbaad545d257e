// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package subject implements the retry-subject naming convention shared by
// brokers and backup tooling. A message that exhausted consumer retries is
// republished on "%RETRY%<subject>%<group>"; once its dead-letter record is
// archived it is keyed under "%DEAD_RETRY%<subject>%<group>".
package subject

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// RetryPrefix marks subjects carrying messages scheduled for consumer retry.
	RetryPrefix = "%RETRY%"

	// DeadRetryPrefix marks subjects whose messages exhausted all retries.
	DeadRetryPrefix = "%DEAD_RETRY%"

	sep = "%"
)

// ErrNotRetrySubject reports a subject that does not follow the
// "%RETRY%<subject>%<group>" form.
var ErrNotRetrySubject = errors.New("not a retry subject")

// BuildRetrySubject composes the retry subject for a subject/group pair.
func BuildRetrySubject(realSubject, group string) string {
	return RetryPrefix + realSubject + sep + group
}

// BuildDeadRetrySubject composes the dead-retry subject for a subject/group pair.
func BuildDeadRetrySubject(realSubject, group string) string {
	return DeadRetryPrefix + realSubject + sep + group
}

// IsRetrySubject reports whether s carries the retry prefix.
func IsRetrySubject(s string) bool {
	return strings.HasPrefix(s, RetryPrefix)
}

// IsDeadRetrySubject reports whether s carries the dead-retry prefix.
func IsDeadRetrySubject(s string) bool {
	return strings.HasPrefix(s, DeadRetryPrefix)
}

// ParseRetrySubject splits a retry subject into its real subject and consumer
// group. The group is the segment after the last separator; subjects may
// themselves contain separators.
func ParseRetrySubject(s string) (realSubject, group string, err error) {
	if !strings.HasPrefix(s, RetryPrefix) {
		return "", "", fmt.Errorf("%w: %q", ErrNotRetrySubject, s)
	}
	rest := strings.TrimPrefix(s, RetryPrefix)
	i := strings.LastIndex(rest, sep)
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrNotRetrySubject, s)
	}
	return rest[:i], rest[i+1:], nil
}

// RealSubject returns the underlying subject for retry and dead-retry
// subjects, or s unchanged for plain subjects.
func RealSubject(s string) string {
	for _, prefix := range []string{RetryPrefix, DeadRetryPrefix} {
		if strings.HasPrefix(s, prefix) {
			rest := strings.TrimPrefix(s, prefix)
			if i := strings.LastIndex(rest, sep); i > 0 {
				return rest[:i]
			}
			return rest
		}
	}
	return s
}

// ConsumerGroup returns the consumer group encoded in a retry or dead-retry
// subject, or the empty string for plain subjects.
func ConsumerGroup(s string) string {
	for _, prefix := range []string{RetryPrefix, DeadRetryPrefix} {
		if strings.HasPrefix(s, prefix) {
			rest := strings.TrimPrefix(s, prefix)
			if i := strings.LastIndex(rest, sep); i > 0 && i < len(rest)-1 {
				return rest[i+1:]
			}
			return ""
		}
	}
	return ""
}
