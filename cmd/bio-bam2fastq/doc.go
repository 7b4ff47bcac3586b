/*
bio-bam2fastq reconstructs the FASTQ files a BAM archive was aligned
from. For every sample it decides whether the reads are paired-end,
regroups the mates that the aligner scattered across the file, restores
reverse-strand alignments to read orientation, and writes
<sample>.1.fq, <sample>.2.fq, and <sample>.singleton.fq. Samples run
in parallel and fail independently.

Sample usage:

bio-bam2fastq restore \
    -output-dir fastq \
    -gzip \
    tumor=s3://bucket/tumor.bam \
    normal.bam

bio-bam2fastq classify -o report.tsv *.bam
*/
package main
