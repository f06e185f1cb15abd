package parse

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jward/arbor/internal/ast"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".java": "java",
	".ts":   "typescript",
	".mts":  "typescript",
	".cts":  "typescript",
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// Languages returns the supported language names, sorted.
func Languages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range extToLanguage {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return out
}

// grammar describes how one tree-sitter grammar maps onto ast kinds.
// Named nodes found in neither table are flattened: their children are
// attached to the nearest mapped ancestor.
type grammar struct {
	language func() *sitter.Language
	nodes    map[string]ast.Kind // interior nodes
	leaves   map[string]ast.Kind // single-token nodes, children ignored
}

var (
	grammars     map[string]*grammar
	grammarsOnce sync.Once
)

func grammarFor(lang string) (*grammar, bool) {
	grammarsOnce.Do(func() {
		grammars = map[string]*grammar{
			"java":       javaGrammar(),
			"typescript": typescriptGrammar(),
		}
	})
	g, ok := grammars[lang]
	return g, ok
}

// TreeSitterLanguage returns the tree-sitter grammar for a canonical
// language name, for callers that run tree-sitter queries over raw source.
func TreeSitterLanguage(lang string) (*sitter.Language, bool) {
	g, ok := grammarFor(lang)
	if !ok {
		return nil, false
	}
	return g.language(), true
}

func javaGrammar() *grammar {
	return &grammar{
		language: java.GetLanguage,
		nodes: map[string]ast.Kind{
			"program":                         ast.KindCompilationUnit,
			"class_declaration":               ast.KindClassDeclaration,
			"record_declaration":              ast.KindClassDeclaration,
			"interface_declaration":           ast.KindInterfaceDeclaration,
			"annotation_type_declaration":     ast.KindInterfaceDeclaration,
			"enum_declaration":                ast.KindEnumDeclaration,
			"enum_constant":                   ast.KindEnumConstant,
			"superclass":                      ast.KindExtendsClause,
			"extends_interfaces":              ast.KindExtendsClause,
			"super_interfaces":                ast.KindImplementsClause,
			"class_body":                      ast.KindClassBody,
			"interface_body":                  ast.KindClassBody,
			"enum_body":                       ast.KindClassBody,
			"annotation_type_body":            ast.KindClassBody,
			"field_declaration":               ast.KindFieldDeclaration,
			"constant_declaration":            ast.KindFieldDeclaration,
			"variable_declarator":             ast.KindVariableDeclaration,
			"method_declaration":              ast.KindMethodDeclaration,
			"constructor_declaration":         ast.KindConstructorDeclaration,
			"compact_constructor_declaration": ast.KindConstructorDeclaration,
			"formal_parameters":               ast.KindFormalParameterList,
			"formal_parameter":                ast.KindFormalParameter,
			"spread_parameter":                ast.KindFormalParameter,
			"type_parameters":                 ast.KindTypeParameterList,
			"type_parameter":                  ast.KindTypeParameter,
			"type_bound":                      ast.KindTypeBound,
			"wildcard":                        ast.KindTypeBound,
			"type_arguments":                  ast.KindTypeArgumentList,
			"array_type":                      ast.KindArrayType,
			"block":                           ast.KindBlock,
			"constructor_body":                ast.KindBlock,
			"expression_statement":            ast.KindExpressionStatement,
			"local_variable_declaration":      ast.KindLocalVariableStatement,
			"return_statement":                ast.KindReturnStatement,
			"if_statement":                    ast.KindIfStatement,
			"for_statement":                   ast.KindForStatement,
			"enhanced_for_statement":          ast.KindForEachStatement,
			"while_statement":                 ast.KindWhileStatement,
			"do_statement":                    ast.KindDoStatement,
			"switch_expression":               ast.KindSwitchStatement,
			"switch_block_statement_group":    ast.KindSwitchCase,
			"switch_rule":                     ast.KindSwitchCase,
			"try_statement":                   ast.KindTryStatement,
			"try_with_resources_statement":    ast.KindTryStatement,
			"catch_clause":                    ast.KindCatchClause,
			"finally_clause":                  ast.KindFinallyClause,
			"throw_statement":                 ast.KindThrowStatement,
			"break_statement":                 ast.KindBreakStatement,
			"continue_statement":              ast.KindContinueStatement,
			"labeled_statement":               ast.KindLabeledStatement,
			"method_invocation":               ast.KindMethodInvocation,
			"object_creation_expression":      ast.KindInstanceCreation,
			"field_access":                    ast.KindPropertyAccess,
			"array_access":                    ast.KindIndexExpression,
			"assignment_expression":           ast.KindAssignmentExpression,
			"binary_expression":               ast.KindBinaryExpression,
			"unary_expression":                ast.KindPrefixExpression,
			"update_expression":               ast.KindPostfixExpression,
			"ternary_expression":              ast.KindConditionalExpression,
			"cast_expression":                 ast.KindCastExpression,
			"instanceof_expression":           ast.KindIsExpression,
			"parenthesized_expression":        ast.KindParenthesizedExpression,
			"lambda_expression":               ast.KindFunctionExpression,
			"argument_list":                   ast.KindArgumentList,
			"array_initializer":               ast.KindListLiteral,
		},
		leaves: map[string]ast.Kind{
			"identifier":                     ast.KindSimpleIdentifier,
			"scoped_identifier":              ast.KindQualifiedName,
			"type_identifier":                ast.KindTypeName,
			"scoped_type_identifier":         ast.KindTypeName,
			"integral_type":                  ast.KindPredefinedType,
			"floating_point_type":            ast.KindPredefinedType,
			"boolean_type":                   ast.KindPredefinedType,
			"void_type":                      ast.KindPredefinedType,
			"marker_annotation":              ast.KindAnnotation,
			"annotation":                     ast.KindAnnotation,
			"this":                           ast.KindThisExpression,
			"super":                          ast.KindSuperExpression,
			"string_literal":                 ast.KindStringLiteral,
			"character_literal":              ast.KindStringLiteral,
			"text_block":                     ast.KindStringLiteral,
			"decimal_integer_literal":        ast.KindIntegerLiteral,
			"hex_integer_literal":            ast.KindIntegerLiteral,
			"octal_integer_literal":          ast.KindIntegerLiteral,
			"binary_integer_literal":         ast.KindIntegerLiteral,
			"decimal_floating_point_literal": ast.KindDoubleLiteral,
			"hex_floating_point_literal":     ast.KindDoubleLiteral,
			"true":                           ast.KindBooleanLiteral,
			"false":                          ast.KindBooleanLiteral,
			"null_literal":                   ast.KindNullLiteral,
			"line_comment":                   ast.KindComment,
			"block_comment":                  ast.KindComment,
		},
	}
}

func typescriptGrammar() *grammar {
	return &grammar{
		language: ts.GetLanguage,
		nodes: map[string]ast.Kind{
			"program":                         ast.KindCompilationUnit,
			"import_statement":                ast.KindImportDirective,
			"class_declaration":               ast.KindClassDeclaration,
			"abstract_class_declaration":      ast.KindClassDeclaration,
			"class":                           ast.KindClassDeclaration,
			"interface_declaration":           ast.KindInterfaceDeclaration,
			"enum_declaration":                ast.KindEnumDeclaration,
			"enum_assignment":                 ast.KindEnumConstant,
			"type_alias_declaration":          ast.KindTypeAlias,
			"extends_clause":                  ast.KindExtendsClause,
			"extends_type_clause":             ast.KindExtendsClause,
			"implements_clause":               ast.KindImplementsClause,
			"class_body":                      ast.KindClassBody,
			"interface_body":                  ast.KindClassBody,
			"object_type":                     ast.KindClassBody,
			"enum_body":                       ast.KindClassBody,
			"public_field_definition":         ast.KindFieldDeclaration,
			"property_signature":              ast.KindFieldDeclaration,
			"method_definition":               ast.KindMethodDeclaration,
			"method_signature":                ast.KindMethodDeclaration,
			"abstract_method_signature":       ast.KindMethodDeclaration,
			"function_declaration":            ast.KindFunctionDeclaration,
			"generator_function_declaration":  ast.KindFunctionDeclaration,
			"lexical_declaration":             ast.KindVariableDeclarationList,
			"variable_declaration":            ast.KindVariableDeclarationList,
			"variable_declarator":             ast.KindVariableDeclaration,
			"formal_parameters":               ast.KindFormalParameterList,
			"required_parameter":              ast.KindFormalParameter,
			"optional_parameter":              ast.KindFormalParameter,
			"type_parameters":                 ast.KindTypeParameterList,
			"type_parameter":                  ast.KindTypeParameter,
			"constraint":                      ast.KindTypeBound,
			"type_arguments":                  ast.KindTypeArgumentList,
			"array_type":                      ast.KindArrayType,
			"union_type":                      ast.KindUnionType,
			"function_type":                   ast.KindFunctionType,
			"statement_block":                 ast.KindBlock,
			"expression_statement":            ast.KindExpressionStatement,
			"return_statement":                ast.KindReturnStatement,
			"if_statement":                    ast.KindIfStatement,
			"for_statement":                   ast.KindForStatement,
			"for_in_statement":                ast.KindForEachStatement,
			"while_statement":                 ast.KindWhileStatement,
			"do_statement":                    ast.KindDoStatement,
			"switch_statement":                ast.KindSwitchStatement,
			"switch_case":                     ast.KindSwitchCase,
			"switch_default":                  ast.KindSwitchCase,
			"try_statement":                   ast.KindTryStatement,
			"catch_clause":                    ast.KindCatchClause,
			"finally_clause":                  ast.KindFinallyClause,
			"throw_statement":                 ast.KindThrowStatement,
			"break_statement":                 ast.KindBreakStatement,
			"continue_statement":              ast.KindContinueStatement,
			"labeled_statement":               ast.KindLabeledStatement,
			"empty_statement":                 ast.KindEmptyStatement,
			"call_expression":                 ast.KindMethodInvocation,
			"new_expression":                  ast.KindInstanceCreation,
			"member_expression":               ast.KindPropertyAccess,
			"subscript_expression":            ast.KindIndexExpression,
			"assignment_expression":           ast.KindAssignmentExpression,
			"augmented_assignment_expression": ast.KindAssignmentExpression,
			"binary_expression":               ast.KindBinaryExpression,
			"unary_expression":                ast.KindPrefixExpression,
			"update_expression":               ast.KindPostfixExpression,
			"ternary_expression":              ast.KindConditionalExpression,
			"as_expression":                   ast.KindCastExpression,
			"parenthesized_expression":        ast.KindParenthesizedExpression,
			"arrow_function":                  ast.KindFunctionExpression,
			"function_expression":             ast.KindFunctionExpression,
			"arguments":                       ast.KindArgumentList,
			"array":                           ast.KindListLiteral,
			"object":                          ast.KindMapLiteral,
			"pair":                            ast.KindMapEntry,
		},
		leaves: map[string]ast.Kind{
			"identifier":                    ast.KindSimpleIdentifier,
			"property_identifier":           ast.KindSimpleIdentifier,
			"shorthand_property_identifier": ast.KindSimpleIdentifier,
			"type_identifier":               ast.KindTypeName,
			"nested_type_identifier":        ast.KindTypeName,
			"predefined_type":               ast.KindPredefinedType,
			"accessibility_modifier":        ast.KindModifier,
			"decorator":                     ast.KindAnnotation,
			"this":                          ast.KindThisExpression,
			"super":                         ast.KindSuperExpression,
			"string":                        ast.KindStringLiteral,
			"template_string":               ast.KindTemplateLiteral,
			"number":                        ast.KindIntegerLiteral,
			"true":                          ast.KindBooleanLiteral,
			"false":                         ast.KindBooleanLiteral,
			"null":                          ast.KindNullLiteral,
			"undefined":                     ast.KindNullLiteral,
			"comment":                       ast.KindComment,
		},
	}
}
