package openai

import "github.com/pkg/errors"

var errNoChoices = errors.New("response contained no choices")
