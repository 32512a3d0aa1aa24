package domain

import (
	"fmt"
	"regexp"
	"slices"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// MaxNumbersPerRequest bounds a single pick request.
const MaxNumbersPerRequest = 1000

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePositiveAmount checks that a token amount is positive.
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}

// ValidateRequestedNumbers checks a raw pick payload.
func ValidateRequestedNumbers(numbers []int) error {
	if len(numbers) == 0 {
		return fmt.Errorf("numbers must be a non-empty list")
	}
	if len(numbers) > MaxNumbersPerRequest {
		return fmt.Errorf("at most %d numbers per request", MaxNumbersPerRequest)
	}
	for _, n := range numbers {
		if n <= 0 {
			return fmt.Errorf("numbers must be positive integers, got %d", n)
		}
	}
	return nil
}

// UniqueNumbers collapses duplicates, keeping first-seen order.
func UniqueNumbers(numbers []int) []int {
	seen := make(map[int]struct{}, len(numbers))
	out := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ValidateGameRange checks that r is one of AllowedGameRanges.
func ValidateGameRange(r int) error {
	if !slices.Contains(AllowedGameRanges, r) {
		return fmt.Errorf("range must be one of %v", AllowedGameRanges)
	}
	return nil
}
