package ast

import "strconv"

// Kind identifies the syntactic form of a Node. The set is closed: every
// node produced by the parser has one of these kinds, and Dispatch relies on
// kindCount to size its handler table.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Units and directives.
	KindCompilationUnit
	KindPackageDirective
	KindImportDirective
	KindExportDirective

	// Declarations.
	KindClassDeclaration
	KindInterfaceDeclaration
	KindEnumDeclaration
	KindMixinDeclaration
	KindTypeAlias
	KindEnumConstant
	KindFieldDeclaration
	KindMethodDeclaration
	KindConstructorDeclaration
	KindFunctionDeclaration
	KindVariableDeclarationList
	KindVariableDeclaration
	KindFormalParameterList
	KindFormalParameter
	KindTypeParameterList
	KindTypeParameter
	KindClassBody
	KindAnnotation
	KindModifier

	// Type syntax.
	KindExtendsClause
	KindImplementsClause
	KindWithClause
	KindTypeBound
	KindTypeName
	KindTypeArgumentList
	KindArrayType
	KindPredefinedType
	KindUnionType
	KindFunctionType

	// Statements.
	KindBlock
	KindExpressionStatement
	KindLocalVariableStatement
	KindReturnStatement
	KindIfStatement
	KindForStatement
	KindForEachStatement
	KindWhileStatement
	KindDoStatement
	KindSwitchStatement
	KindSwitchCase
	KindTryStatement
	KindCatchClause
	KindFinallyClause
	KindThrowStatement
	KindBreakStatement
	KindContinueStatement
	KindLabeledStatement
	KindEmptyStatement

	// Expressions.
	KindSimpleIdentifier
	KindQualifiedName
	KindMethodInvocation
	KindInstanceCreation
	KindPropertyAccess
	KindIndexExpression
	KindAssignmentExpression
	KindBinaryExpression
	KindPrefixExpression
	KindPostfixExpression
	KindConditionalExpression
	KindCastExpression
	KindIsExpression
	KindParenthesizedExpression
	KindFunctionExpression
	KindArgumentList
	KindListLiteral
	KindMapLiteral
	KindMapEntry
	KindThisExpression
	KindSuperExpression

	// Literals.
	KindStringLiteral
	KindTemplateLiteral
	KindIntegerLiteral
	KindDoubleLiteral
	KindBooleanLiteral
	KindNullLiteral

	// Trivia and recovery.
	KindComment
	KindSyntaxError

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:                 "Invalid",
	KindCompilationUnit:         "CompilationUnit",
	KindPackageDirective:        "PackageDirective",
	KindImportDirective:         "ImportDirective",
	KindExportDirective:         "ExportDirective",
	KindClassDeclaration:        "ClassDeclaration",
	KindInterfaceDeclaration:    "InterfaceDeclaration",
	KindEnumDeclaration:         "EnumDeclaration",
	KindMixinDeclaration:        "MixinDeclaration",
	KindTypeAlias:               "TypeAlias",
	KindEnumConstant:            "EnumConstant",
	KindFieldDeclaration:        "FieldDeclaration",
	KindMethodDeclaration:       "MethodDeclaration",
	KindConstructorDeclaration:  "ConstructorDeclaration",
	KindFunctionDeclaration:     "FunctionDeclaration",
	KindVariableDeclarationList: "VariableDeclarationList",
	KindVariableDeclaration:     "VariableDeclaration",
	KindFormalParameterList:     "FormalParameterList",
	KindFormalParameter:         "FormalParameter",
	KindTypeParameterList:       "TypeParameterList",
	KindTypeParameter:           "TypeParameter",
	KindClassBody:               "ClassBody",
	KindAnnotation:              "Annotation",
	KindModifier:                "Modifier",
	KindExtendsClause:           "ExtendsClause",
	KindImplementsClause:        "ImplementsClause",
	KindWithClause:              "WithClause",
	KindTypeBound:               "TypeBound",
	KindTypeName:                "TypeName",
	KindTypeArgumentList:        "TypeArgumentList",
	KindArrayType:               "ArrayType",
	KindPredefinedType:          "PredefinedType",
	KindUnionType:               "UnionType",
	KindFunctionType:            "FunctionType",
	KindBlock:                   "Block",
	KindExpressionStatement:     "ExpressionStatement",
	KindLocalVariableStatement:  "LocalVariableStatement",
	KindReturnStatement:         "ReturnStatement",
	KindIfStatement:             "IfStatement",
	KindForStatement:            "ForStatement",
	KindForEachStatement:        "ForEachStatement",
	KindWhileStatement:          "WhileStatement",
	KindDoStatement:             "DoStatement",
	KindSwitchStatement:         "SwitchStatement",
	KindSwitchCase:              "SwitchCase",
	KindTryStatement:            "TryStatement",
	KindCatchClause:             "CatchClause",
	KindFinallyClause:           "FinallyClause",
	KindThrowStatement:          "ThrowStatement",
	KindBreakStatement:          "BreakStatement",
	KindContinueStatement:       "ContinueStatement",
	KindLabeledStatement:        "LabeledStatement",
	KindEmptyStatement:          "EmptyStatement",
	KindSimpleIdentifier:        "SimpleIdentifier",
	KindQualifiedName:           "QualifiedName",
	KindMethodInvocation:        "MethodInvocation",
	KindInstanceCreation:        "InstanceCreation",
	KindPropertyAccess:          "PropertyAccess",
	KindIndexExpression:         "IndexExpression",
	KindAssignmentExpression:    "AssignmentExpression",
	KindBinaryExpression:        "BinaryExpression",
	KindPrefixExpression:        "PrefixExpression",
	KindPostfixExpression:       "PostfixExpression",
	KindConditionalExpression:   "ConditionalExpression",
	KindCastExpression:          "CastExpression",
	KindIsExpression:            "IsExpression",
	KindParenthesizedExpression: "ParenthesizedExpression",
	KindFunctionExpression:      "FunctionExpression",
	KindArgumentList:            "ArgumentList",
	KindListLiteral:             "ListLiteral",
	KindMapLiteral:              "MapLiteral",
	KindMapEntry:                "MapEntry",
	KindThisExpression:          "ThisExpression",
	KindSuperExpression:         "SuperExpression",
	KindStringLiteral:           "StringLiteral",
	KindTemplateLiteral:         "TemplateLiteral",
	KindIntegerLiteral:          "IntegerLiteral",
	KindDoubleLiteral:           "DoubleLiteral",
	KindBooleanLiteral:          "BooleanLiteral",
	KindNullLiteral:             "NullLiteral",
	KindComment:                 "Comment",
	KindSyntaxError:             "SyntaxError",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsDeclaration reports whether nodes of this kind introduce a named
// element whose name is held by their first SimpleIdentifier child.
func (k Kind) IsDeclaration() bool {
	switch k {
	case KindClassDeclaration, KindInterfaceDeclaration, KindEnumDeclaration,
		KindMixinDeclaration, KindTypeAlias, KindEnumConstant,
		KindMethodDeclaration, KindConstructorDeclaration, KindFunctionDeclaration,
		KindVariableDeclaration, KindFormalParameter, KindTypeParameter:
		return true
	}
	return false
}

// IsTypeDeclaration reports whether the kind declares a class-like type.
func (k Kind) IsTypeDeclaration() bool {
	switch k {
	case KindClassDeclaration, KindInterfaceDeclaration, KindEnumDeclaration, KindMixinDeclaration:
		return true
	}
	return false
}
