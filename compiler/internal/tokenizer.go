package internal

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/knightcode/util"
)

// A simple Tokenizer for KnightCode.

// KnightCode has those elements:
// * KeyWord: PROGRAM, DECLARE, INTEGER, STRING, BEGIN, END, SET, PRINT, READ, IF, THEN, ELSE, ENDIF,
// 			WHILE, DO, ENDWHILE, INC.
// * Symbol: :=, (, ), +, -, *, /, >, <, =, <>.
// * Constant: number (digits only), string ("xxx", \" does not close the string).
// * Identifier: a letter followed by letters, digits or underscores.
// * Comment: # until the end of line.

type TokenType int

const (
	ProgramTP            TokenType = iota // PROGRAM
	DeclareTP                             // DECLARE
	IntegerTypeTP                         // INTEGER
	StringTypeTP                          // STRING
	BeginTP                               // BEGIN
	EndTP                                 // END
	SetTP                                 // SET
	PrintTP                               // PRINT
	ReadTP                                // READ
	IfTP                                  // IF
	ThenTP                                // THEN
	ElseTP                                // ELSE
	EndIfTP                               // ENDIF
	WhileTP                               // WHILE
	DoTP                                  // DO
	EndWhileTP                            // ENDWHILE
	IncTP                                 // INC
	AssignTP                              // :=
	LeftParentThesesTP                    // (
	RightParentThesesTP                   // )
	AddTP                                 // +
	MinusTP                               // -
	MultiplyTP                            // *
	DivideTP                              // /
	GreaterTP                             // >
	LessTP                                // <
	EqualTP                               // =
	NotEqualTP                            // <>
	NumberTP                              // 1010
	StringTP                              // "xxx"
	IdentifierTP                          // varA
	CommentTP                             // # xxx
)

// keyWordTokenTPMap is the mapping from keyWord to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"PROGRAM":  ProgramTP,
	"DECLARE":  DeclareTP,
	"INTEGER":  IntegerTypeTP,
	"STRING":   StringTypeTP,
	"BEGIN":    BeginTP,
	"END":      EndTP,
	"SET":      SetTP,
	"PRINT":    PrintTP,
	"READ":     ReadTP,
	"IF":       IfTP,
	"THEN":     ThenTP,
	"ELSE":     ElseTP,
	"ENDIF":    EndIfTP,
	"WHILE":    WhileTP,
	"DO":       DoTP,
	"ENDWHILE": EndWhileTP,
	"INC":      IncTP,
}

// simpleSymbolTokenTPMap is the mapping from single byte symbols to the corresponding TokenTP.
var simpleSymbolTokenTPMap = map[string]TokenType{
	"(": LeftParentThesesTP,
	")": RightParentThesesTP,
	"+": AddTP,
	"-": MinusTP,
	"*": MultiplyTP,
	"/": DivideTP,
	">": GreaterTP,
	"=": EqualTP,
}

type Token struct {
	content  string
	line     int
	startPos int
	endPos   int
	tp       TokenType
}

func (token *Token) String() string {
	return fmt.Sprintf("%q at line %d", token.content, token.line)
}

type Tokenizer struct {
	currentPos  int
	currentLine int
	tokens      []*Token
}

// getNextToken returns the next token from line, or nil when the line has no more tokens.
func (tokenizer *Tokenizer) getNextToken(line []byte) (*Token, error) {
	tokenizer.trimSpace(line)
	if !tokenizer.hasRemainCharacters(line) {
		return nil, nil
	}
	switch line[tokenizer.currentPos] {
	case '(', ')', '+', '-', '*', '/', '>', '=':
		return tokenizer.tokenSimpleSymbol(line)
	case '<':
		return tokenizer.tokenLessOrNotEqual(line)
	case ':':
		return tokenizer.tokenAssign(line)
	case '#':
		return tokenizer.tokenComment(line)
	case '"':
		return tokenizer.tokenString(line)
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return tokenizer.tokenNumber(line)
	default:
		return tokenizer.tokenKeywordOrIdentifier(line)
	}
}

// trimSpace steps forward through line and skips all continuous space.
func (tokenizer *Tokenizer) trimSpace(line []byte) {
	for tokenizer.currentPos < len(line) && util.IsSpace(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
}

func (tokenizer *Tokenizer) hasRemainCharacters(line []byte) bool {
	return tokenizer.currentPos < len(line)
}

func (tokenizer *Tokenizer) makeToken(line []byte, startPos int, tp TokenType) *Token {
	return &Token{
		content:  string(line[startPos:tokenizer.currentPos]),
		line:     tokenizer.currentLine,
		startPos: startPos,
		endPos:   tokenizer.currentPos,
		tp:       tp,
	}
}

func (tokenizer *Tokenizer) tokenSimpleSymbol(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	return tokenizer.makeToken(line, startPos, simpleSymbolTokenTPMap[string(line[startPos])]), nil
}

func (tokenizer *Tokenizer) tokenLessOrNotEqual(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	if tokenizer.hasRemainCharacters(line) && line[tokenizer.currentPos] == '>' {
		tokenizer.currentPos++
		return tokenizer.makeToken(line, startPos, NotEqualTP), nil
	}
	return tokenizer.makeToken(line, startPos, LessTP), nil
}

func (tokenizer *Tokenizer) tokenAssign(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	if startPos+1 >= len(line) || line[startPos+1] != '=' {
		return nil, tokenizer.makeError(string(line[startPos:]), tokenizer.currentLine, "expect :=")
	}
	tokenizer.currentPos += 2
	return tokenizer.makeToken(line, startPos, AssignTP), nil
}

func (tokenizer *Tokenizer) tokenComment(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.currentPos = len(line)
	return tokenizer.makeToken(line, startPos, CommentTP), nil
}

// tokenString keeps the surrounding quotes in the token content. A backslash escapes the next byte, so
// \" does not close the string; escapes are not resolved.
func (tokenizer *Tokenizer) tokenString(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	for tokenizer.currentPos < len(line) {
		switch line[tokenizer.currentPos] {
		case '\\':
			tokenizer.currentPos += 2
			continue
		case '"':
			tokenizer.currentPos++
			return tokenizer.makeToken(line, startPos, StringTP), nil
		case '\n':
			tokenizer.currentPos = len(line)
			continue
		}
		tokenizer.currentPos++
	}
	tokenizer.currentPos = len(line)
	return nil, tokenizer.makeError(string(line[startPos:]), tokenizer.currentLine, "incorrect string format")
}

func (tokenizer *Tokenizer) tokenNumber(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	// 12abc is neither a number nor an identifier.
	if tokenizer.hasRemainCharacters(line) && util.IsLetterOrUnderscoreOrNumber(line[tokenizer.currentPos]) {
		return nil, tokenizer.makeError(string(line[startPos:]), tokenizer.currentLine, "incorrect number format")
	}
	return tokenizer.makeToken(line, startPos, NumberTP), nil
}

func (tokenizer *Tokenizer) tokenKeywordOrIdentifier(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	if !util.IsLetter(line[startPos]) {
		return nil, tokenizer.makeError(string(line[startPos:startPos+1]), tokenizer.currentLine,
			"unexpected character")
	}
	for tokenizer.currentPos < len(line) && util.IsLetterOrUnderscoreOrNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	token := tokenizer.makeToken(line, startPos, IdentifierTP)
	if keyWordTP, isKeyWord := keyWordTokenTPMap[token.content]; isKeyWord {
		token.tp = keyWordTP
	}
	return token, nil
}

func (tokenizer *Tokenizer) makeError(near string, line int, msg string) error {
	return errors.Errorf("tokenizer error near %s at line %d, msg: %s", near, line, msg)
}

func (tokenizer *Tokenizer) Tokenize(rd io.Reader) (tokens []*Token, err error) {
	bfReader := bufio.NewReader(rd)
	tokenizer.currentLine = 1
	for {
		line, err := bfReader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if len(line) > 0 {
			if parseErr := tokenizer.parseLine(line); parseErr != nil {
				return nil, parseErr
			}
		}
		if err == io.EOF {
			return tokenizer.tokens, nil
		}
		tokenizer.currentLine++
		tokenizer.currentPos = 0
	}
}

func (tokenizer *Tokenizer) parseLine(line []byte) error {
	for {
		token, err := tokenizer.getNextToken(line)
		if err != nil {
			return err
		}
		if token == nil {
			return nil
		}
		if token.tp == CommentTP {
			return nil
		}
		tokenizer.tokens = append(tokenizer.tokens, token)
	}
}

func (tokenizer *Tokenizer) Reset() {
	tokenizer.currentPos, tokenizer.currentLine = 0, 0
	tokenizer.tokens = nil
}
