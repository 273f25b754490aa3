// Package classfile reads and writes JVM classfiles at the declaration level.
//
// The reader is push-style: Accept walks a classfile and hands each part to a
// Visitor, whose callbacks decide whether the walk continues. A visitor that
// has what it needs returns Halt and the walk ends with a nil error, without
// touching the remaining bytes. Scan uses this to pull a class name and
// superclass out of the header of a classfile.
//
// Method bodies, debug tables, stack map frames and bootstrap method tables
// are never materialized. Attributes that are kept are resolved against the
// constant pool into Go values, so a Class can be re-encoded with a fresh,
// minimal constant pool by Encode.
package classfile
